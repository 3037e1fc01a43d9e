package orchestrator

import (
	"context"
	"fmt"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/metrics"
	"github.com/roach88/restgate/internal/record"
)

// Operation names used in logs and metrics.
const (
	opCreate = "create"
	opRead   = "read"
	opUpdate = "update"
	opDelete = "delete"
	opScript = "script"
	opLayout = "layout"
)

// failure is one failed item. Items without a record ID yet are keyed by
// batch index, everything else by the identifier the caller sent.
type failure struct {
	err      error
	index    int
	recordID string
	byIndex  bool
}

func indexFailure(pos batchPos, err error) *failure {
	return &failure{err: err, index: pos.Index, byIndex: true}
}

func recordFailure(id string, err error) *failure {
	return &failure{err: err, recordID: id}
}

type itemFunc func(ctx context.Context, out *record.Message, rec record.Record, pos batchPos, h *hooks) *failure

// run drives a batch. With one set the first failure is returned as the
// error; otherwise failures become multistatus rows.
func (o *Orchestrator) run(ctx context.Context, op string, items []record.Record, one bool, item itemFunc) (*record.Message, error) {
	if len(items) == 0 {
		return nil, backend.NewBadRequest(fmt.Errorf("%s: no records", op))
	}
	out := record.NewMessage()
	out.SetInfo(record.InfoRequestID, o.requestID)

	failed := 0
	for i, rec := range items {
		pos := positionOf(i, len(items))
		if one {
			pos = single
		}
		h := o.hooksFor(pos)
		f := item(ctx, out, rec, pos, h)
		o.settle(ctx, out, h)
		if f == nil {
			continue
		}

		be := backend.AsError(f.err)
		if one {
			metrics.RecordOperation(o.conn.Kind(), op, metrics.OutcomeError)
			o.log.Infow("operation failed", "op", op, "error", be)
			return nil, be
		}
		failed++
		metrics.RecordItemFailure(o.conn.Kind(), string(be.Category))
		if f.byIndex {
			out.AddIndexStatus(f.index, be.Status(), be.Code, be.Message)
		} else {
			out.AddRecordStatus(f.recordID, be.Status(), be.Code, be.Message)
		}
		o.log.Infow("item failed", "op", op, "index", pos.Index, "error", be)
	}

	outcome := metrics.OutcomeOK
	switch {
	case failed == len(items):
		outcome = metrics.OutcomeError
	case failed > 0:
		outcome = metrics.OutcomePartial
	}
	metrics.RecordOperation(o.conn.Kind(), op, outcome)
	o.log.Debugw("batch done", "op", op, "items", len(items), "failed", failed)
	return out, nil
}

// settle runs the hooks an item still owes because it failed before its
// main backend call went out.
func (o *Orchestrator) settle(ctx context.Context, out *record.Message, h *hooks) {
	if h.sent {
		return
	}
	for _, s := range []*backend.ScriptCall{h.pre, h.post} {
		if s == nil {
			continue
		}
		res, err := o.conn.RunScript(ctx, o.layout, *s)
		if err != nil {
			o.log.Warnw("hook script failed", "script", s.Name, "error", err)
			continue
		}
		mergeInfo(out, res.Info)
	}
	h.sent = true
}

func mergeInfo(out *record.Message, info *record.Fields) {
	for k, v := range info.All() {
		out.SetInfo(k, v)
	}
}

// Create creates every record of in.
func (o *Orchestrator) Create(ctx context.Context, in *record.Message) (*record.Message, error) {
	return o.run(ctx, opCreate, in.Records, false, o.createItem)
}

// CreateOne creates one record.
func (o *Orchestrator) CreateOne(ctx context.Context, fields *record.Fields) (*record.Message, error) {
	return o.run(ctx, opCreate, []record.Record{{Fields: fields}}, true, o.createItem)
}

// Read reads every record of in. Record IDs may be unique keys.
func (o *Orchestrator) Read(ctx context.Context, in *record.Message) (*record.Message, error) {
	return o.run(ctx, opRead, in.Records, false, o.readItem)
}

// ReadOne reads one record.
func (o *Orchestrator) ReadOne(ctx context.Context, id string) (*record.Message, error) {
	return o.run(ctx, opRead, []record.Record{{RecordID: id}}, true, o.readItem)
}

// Update updates every record of in.
func (o *Orchestrator) Update(ctx context.Context, in *record.Message) (*record.Message, error) {
	return o.run(ctx, opUpdate, in.Records, false, o.updateItem)
}

// UpdateOne updates one record.
func (o *Orchestrator) UpdateOne(ctx context.Context, id string, fields *record.Fields) (*record.Message, error) {
	return o.run(ctx, opUpdate, []record.Record{{RecordID: id, Fields: fields}}, true, o.updateItem)
}

// Delete deletes every record of in.
func (o *Orchestrator) Delete(ctx context.Context, in *record.Message) (*record.Message, error) {
	return o.run(ctx, opDelete, in.Records, false, o.deleteItem)
}

// DeleteOne deletes one record.
func (o *Orchestrator) DeleteOne(ctx context.Context, id string) (*record.Message, error) {
	return o.run(ctx, opDelete, []record.Record{{RecordID: id}}, true, o.deleteItem)
}

func (o *Orchestrator) createItem(ctx context.Context, out *record.Message, rec record.Record, pos batchPos, h *hooks) *failure {
	if err := o.create(ctx, out, rec.Fields, h.options()); err != nil {
		return indexFailure(pos, err)
	}
	return nil
}

func (o *Orchestrator) create(ctx context.Context, out *record.Message, fields *record.Fields, opts backend.CallOptions) error {
	if fields == nil {
		fields = record.NewFields()
	}
	wr, err := o.conn.CreateRecord(ctx, o.layout, record.CollapseRepetitions(fields), opts)
	if err != nil {
		return err
	}
	mergeInfo(out, wr.Info)
	return o.emit(ctx, out, wr.RecordID)
}

// emit appends the written record: its ID only, or the full record when
// echo is on.
func (o *Orchestrator) emit(ctx context.Context, out *record.Message, id string) error {
	if !o.echo {
		out.AddRecord(record.Record{RecordID: id})
		return nil
	}
	res, err := o.conn.GetRecord(ctx, o.layout, id, backend.CallOptions{})
	if err != nil {
		return err
	}
	return o.addRecords(ctx, out, res.Records)
}

func (o *Orchestrator) readItem(ctx context.Context, out *record.Message, rec record.Record, _ batchPos, h *hooks) *failure {
	id, err := o.resolveIdentity(ctx, rec.RecordID)
	if err != nil {
		return recordFailure(rec.RecordID, err)
	}

	// A record fetched by a unique-key lookup is reused unless a hook has
	// to ride on a read call.
	if id.Record != nil && h.pre == nil && h.post == nil {
		if err := o.addRecords(ctx, out, []record.Record{*id.Record}); err != nil {
			return recordFailure(rec.RecordID, err)
		}
		return nil
	}
	res, err := o.conn.GetRecord(ctx, o.layout, id.RecordID, h.options())
	if err != nil {
		return recordFailure(rec.RecordID, err)
	}
	mergeInfo(out, res.Info)
	if err := o.addRecords(ctx, out, res.Records); err != nil {
		return recordFailure(rec.RecordID, err)
	}
	return nil
}

func (o *Orchestrator) updateItem(ctx context.Context, out *record.Message, rec record.Record, pos batchPos, h *hooks) *failure {
	id, err := o.resolveIdentity(ctx, rec.RecordID)
	if err != nil {
		if backend.IsNoMatch(err) && o.updateElseCreate {
			o.log.Debugw("update falls back to create", "key", rec.RecordID, "index", pos.Index)
			if err := o.create(ctx, out, rec.Fields, h.options()); err != nil {
				return indexFailure(pos, err)
			}
			return nil
		}
		return recordFailure(rec.RecordID, err)
	}

	fields := rec.Fields
	if fields == nil {
		fields = record.NewFields()
	}
	if o.appendMode {
		current := id.Record
		if current == nil {
			res, err := o.conn.GetRecord(ctx, o.layout, id.RecordID, backend.CallOptions{})
			if err != nil {
				return o.updateMissing(ctx, out, rec, pos, h, err)
			}
			current = &res.Records[0]
		}
		fields = appendValues(current.Fields, fields)
	}

	wr, err := o.conn.UpdateRecord(ctx, o.layout, id.RecordID, record.CollapseRepetitions(fields), h.options())
	if err != nil {
		return o.updateMissing(ctx, out, rec, pos, h, err)
	}
	mergeInfo(out, wr.Info)
	if err := o.emit(ctx, out, id.RecordID); err != nil {
		return recordFailure(rec.RecordID, err)
	}
	return nil
}

// updateMissing handles an update whose record vanished or never existed
// under an opaque ID. With update-else-create the item is created instead;
// a pre-script that already went out with the failed call is not sent again.
// Only a missing record falls back; a missing field or layout is reported.
func (o *Orchestrator) updateMissing(ctx context.Context, out *record.Message, rec record.Record, pos batchPos, h *hooks, err error) *failure {
	if !backend.IsRecordMissing(err) || !o.updateElseCreate {
		return recordFailure(rec.RecordID, err)
	}
	alreadySent := h.sent
	opts := h.options()
	if alreadySent {
		opts.PreScript = nil
	}
	if cerr := o.create(ctx, out, rec.Fields, opts); cerr != nil {
		return indexFailure(pos, cerr)
	}
	return nil
}

// appendValues concatenates each submitted value onto the current value of
// the same field.
func appendValues(current, submitted *record.Fields) *record.Fields {
	out := record.NewFields()
	for k, v := range submitted.All() {
		cur, _ := current.Get(k)
		out.Set(k, cur+v)
	}
	return out
}

func (o *Orchestrator) deleteItem(ctx context.Context, out *record.Message, rec record.Record, _ batchPos, h *hooks) *failure {
	id, err := o.resolveIdentity(ctx, rec.RecordID)
	if err != nil {
		return recordFailure(rec.RecordID, err)
	}
	wr, err := o.conn.DeleteRecord(ctx, o.layout, id.RecordID, h.options())
	if err != nil {
		return recordFailure(rec.RecordID, err)
	}
	mergeInfo(out, wr.Info)
	return nil
}

// RunScript runs the script set with SetScript in the layout's context.
func (o *Orchestrator) RunScript(ctx context.Context) (*record.Message, error) {
	if o.script == nil {
		return nil, backend.NewBadRequest(fmt.Errorf("no script set"))
	}
	res, err := o.conn.RunScript(ctx, o.layout, *o.script)
	if err != nil {
		metrics.RecordOperation(o.conn.Kind(), opScript, metrics.OutcomeError)
		return nil, backend.AsError(err)
	}
	out := record.NewMessage()
	out.SetInfo(record.InfoRequestID, o.requestID)
	mergeInfo(out, res.Info)
	for _, r := range res.Records {
		if o.suppressData {
			r = record.Record{RecordID: r.RecordID}
		}
		out.AddRecord(r)
	}
	metrics.RecordOperation(o.conn.Kind(), opScript, metrics.OutcomeOK)
	o.log.Debugw("script done", "script", o.script.Name, "records", len(res.Records))
	return out, nil
}
