package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/record"
)

// identity is a resolved record identifier.
type identity struct {
	RecordID string

	// Record is the record a unique-key lookup fetched, nil for opaque IDs.
	Record *record.Record
}

// splitKey splits "field=value" at the first unescaped '='. "\=" stands
// for a literal '='. ok is false when there is no unescaped '=', in which
// case field holds the unescaped identifier.
func splitKey(id string) (field, value string, ok bool) {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		switch {
		case id[i] == '\\' && i+1 < len(id) && id[i+1] == '=':
			b.WriteByte('=')
			i++
		case id[i] == '=' && !ok:
			field = b.String()
			b.Reset()
			ok = true
		default:
			b.WriteByte(id[i])
		}
	}
	if !ok {
		return b.String(), "", false
	}
	return field, b.String(), true
}

// resolveIdentity turns an identifier into an opaque record ID. A unique
// key runs an exact find: no match is not-found, more than one is a
// conflict carrying the match count. A lookup the backend rejects, such as
// one naming an unknown field, returns the backend's error unchanged.
func (o *Orchestrator) resolveIdentity(ctx context.Context, id string) (identity, error) {
	field, value, isKey := splitKey(id)
	if !isKey {
		if field == "" {
			return identity{}, backend.NewBadRequest(fmt.Errorf("empty record identifier"))
		}
		return identity{RecordID: field}, nil
	}
	if field == "" {
		return identity{}, backend.NewBadRequest(fmt.Errorf("unique key %q names no field", id))
	}

	res, err := o.conn.Find(ctx, backend.FindRequest{
		Layout:   o.layout,
		Criteria: queryir.Exact(field, value),
		Limit:    2,
	})
	if err != nil {
		return identity{}, err
	}

	matches := res.FoundCount
	if matches < len(res.Records) {
		matches = len(res.Records)
	}
	switch {
	case matches == 0, len(res.Records) == 0:
		return identity{}, notFound(id)
	case matches > 1:
		return identity{}, backend.NewAmbiguous(id, matches)
	}
	r := res.Records[0]
	o.log.Debugw("unique key resolved", "key", id, "record", r.RecordID)
	return identity{RecordID: r.RecordID, Record: &r}, nil
}

func notFound(key string) *backend.Error {
	return backend.NewNotFound(backend.CodeNoRecordsMatch, fmt.Sprintf("no record matches %s", key))
}
