package orchestrator

import (
	"context"
	"encoding/base64"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/record"
)

// fieldMeta describes the layout's fields, fetched once per orchestrator.
func (o *Orchestrator) fieldMeta(ctx context.Context) ([]record.FieldMeta, error) {
	if o.meta != nil {
		return o.meta, nil
	}
	meta, err := o.conn.DescribeFields(ctx, o.layout)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = []record.FieldMeta{}
	}
	o.meta = meta
	return meta, nil
}

// addRecords appends read records to out, merging field metadata and
// applying the suppress-data and container policies.
func (o *Orchestrator) addRecords(ctx context.Context, out *record.Message, records []record.Record) error {
	meta, err := o.fieldMeta(ctx)
	if err != nil {
		return err
	}
	out.MergeMeta(meta)

	containers := make(map[string]bool)
	for _, fm := range meta {
		if fm.ResultType == record.ResultContainer {
			containers[fm.Name] = true
		}
	}
	for _, r := range records {
		if o.suppressData {
			out.AddRecord(record.Record{RecordID: r.RecordID})
			continue
		}
		if o.encoding == EncodingBase64 && len(containers) > 0 {
			encoded, err := o.encodeContainers(ctx, r.Fields, containers)
			if err != nil {
				return err
			}
			r.Fields = encoded
		}
		out.AddRecord(r)
	}
	return nil
}

// encodeContainers replaces container references with their base64
// content.
func (o *Orchestrator) encodeContainers(ctx context.Context, fields *record.Fields, containers map[string]bool) (*record.Fields, error) {
	out := record.NewFields()
	for k, v := range fields.All() {
		name, _, _ := record.SplitSuffix(k)
		if !containers[name] || v == "" {
			out.Set(k, v)
			continue
		}
		c, err := o.conn.FetchContainer(ctx, v)
		if err != nil {
			return nil, err
		}
		enc := base64.StdEncoding.EncodeToString(c.Data)
		if c.Filename != "" {
			enc = c.Filename + ";" + enc
		}
		out.Set(k, enc)
	}
	return out, nil
}

// FetchContainer returns the raw content behind a container reference,
// for the raw encoding. A missing content type becomes
// application/octet-stream.
func (o *Orchestrator) FetchContainer(ctx context.Context, ref string) (*backend.Container, error) {
	c, err := o.conn.FetchContainer(ctx, ref)
	if err != nil {
		return nil, backend.AsError(err)
	}
	if c.ContentType == "" {
		c.ContentType = "application/octet-stream"
	}
	return c, nil
}
