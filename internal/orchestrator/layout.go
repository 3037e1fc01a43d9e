package orchestrator

import (
	"context"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/metrics"
	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/record"
)

// ReadLayout reads one page of the layout: the query set with SetQuery, or
// every record, windowed by SetWindow.
//
// With a query (and always on SQL) the window travels in the criteria's
// LIMIT and OFFSET; otherwise the connector's native range is used. A
// query's own LIMIT replaces the window limit and its own OFFSET replaces
// the window skip. Skip SkipEnd counts the matches first and reads the last
// page of the effective limit.
func (o *Orchestrator) ReadLayout(ctx context.Context) (*record.Message, error) {
	out, err := o.readLayout(ctx)
	if err != nil {
		metrics.RecordOperation(o.conn.Kind(), opLayout, metrics.OutcomeError)
		return nil, backend.AsError(err)
	}
	metrics.RecordOperation(o.conn.Kind(), opLayout, metrics.OutcomeOK)
	return out, nil
}

func (o *Orchestrator) readLayout(ctx context.Context) (*record.Message, error) {
	skip, limit := o.skip, o.limit
	q := o.query
	if q != nil && q.HasLimit {
		limit = q.Limit
	}
	switch {
	case q != nil && q.HasOffset:
		skip = q.Offset
	case skip == SkipEnd:
		total, err := o.conn.Count(ctx, o.layout, q)
		if err != nil {
			return nil, err
		}
		skip = max(0, total-limit)
	}
	if skip < 0 {
		skip = 0
	}

	req := backend.FindRequest{Layout: o.layout, Criteria: q, Skip: skip, Limit: limit}
	if q != nil || o.conn.Kind() == backend.KindSQL {
		crit := &queryir.FindCriteria{}
		if q != nil {
			cp := *q
			crit = &cp
		}
		if q != nil && q.HasOffset && !q.HasLimit {
			limit = -1
		} else {
			crit.SetLimit(limit)
		}
		crit.SetOffset(skip)
		req = backend.FindRequest{Layout: o.layout, Criteria: crit, Limit: -1}
	}

	h := o.hooksFor(single)
	req.Options = h.options()
	res, err := o.conn.Find(ctx, req)
	if err != nil {
		return nil, err
	}

	out := record.NewMessage()
	out.SetInfo(record.InfoRequestID, o.requestID)
	mergeInfo(out, res.Info)
	if err := o.addRecords(ctx, out, res.Records); err != nil {
		return nil, err
	}
	out.SetInfoInt(record.InfoFoundSetCount, res.FoundCount)
	out.SetInfoInt(record.InfoFetchCount, len(res.Records))
	out.SetInfoInt(record.InfoSkip, skip)
	if res.TableCount >= 0 {
		out.SetInfoInt(record.InfoTableCount, res.TableCount)
	}
	out.Nav = navLinks(skip, limit, res.FoundCount)

	o.log.Debugw("layout read", "found", res.FoundCount, "fetched", len(res.Records), "skip", skip)
	return out, nil
}

// navLinks builds start/prev/next/end descriptors for a page of limit
// records at skip within found. prev and next are omitted at the edges. An
// unbounded page has no navigation.
func navLinks(skip, limit, found int) []record.NavLink {
	if limit <= 0 {
		return nil
	}
	links := []record.NavLink{{Name: "start", Skip: 0, Max: limit}}
	if skip > 0 {
		links = append(links, record.NavLink{Name: "prev", Skip: max(0, skip-limit), Max: limit})
	}
	if skip+limit < found {
		links = append(links, record.NavLink{Name: "next", Skip: skip + limit, Max: limit})
	}
	links = append(links, record.NavLink{Name: "end", Skip: max(0, found-limit), Max: limit})
	return links
}
