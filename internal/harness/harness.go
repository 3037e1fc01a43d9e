package harness

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/backend/sqldb"
	"github.com/roach88/restgate/internal/logger"
	"github.com/roach88/restgate/internal/orchestrator"
	"github.com/roach88/restgate/internal/record"
	"github.com/roach88/restgate/internal/testutil"
)

// DefaultDatabase is the database name used when a scenario names none.
const DefaultDatabase = "scenario"

// Harness is the scenario execution engine. It holds the scenario's
// database and connector plus the deterministic helpers that make traces
// reproducible.
type Harness struct {
	scenario *Scenario
	db       *sql.DB
	conn     backend.Connector
	seq      *testutil.Sequence
	ids      *testutil.FixedIDGenerator
	log      *zap.SugaredLogger
}

// Options configure Run.
type Options struct {
	Logger *zap.SugaredLogger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory SQLite database:
// 1. Run the setup statements
// 2. Run each step through a new orchestrator and check its expect clause
// 3. Evaluate the assertions against the trace and the final tables
//
// A returned error means the scenario could not run at all; expectation and
// assertion failures land in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logger.For(logger.ComponentHarness)
	}
	log = log.With("scenario", scenario.Name)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}
	// The in-memory database lives on a single connection.
	db.SetMaxOpenConns(1)
	defer db.Close()

	for i, stmt := range scenario.Setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	database := scenario.Database
	if database == "" {
		database = DefaultDatabase
	}
	conn, err := sqldb.New(database, sqldb.Options{
		Driver:   "sqlite3",
		DB:       db,
		IDColumn: scenario.IDColumn,
		Scripts:  scenario.Scripts,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	h := &Harness{
		scenario: scenario,
		db:       db,
		conn:     conn,
		seq:      testutil.NewSequence(),
		ids:      testutil.NewFixedIDGenerator(scenario.RequestID),
		log:      log,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	actx := &AssertionContext{DB: db, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	log.Debugw("scenario done", "steps", len(scenario.Steps), "pass", result.Pass)
	return result, nil
}

// executeStep runs one step on a fresh orchestrator, traces its outcome and
// checks the expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	o := orchestrator.New(h.conn, h.scenario.Layout, orchestrator.Options{
		MaxRecords: h.scenario.MaxRecords,
		RequestIDs: h.ids,
		Logger:     h.log,
	})
	o.SetAppend(step.Append)
	o.SetUpdateElseCreate(step.UpdateElseCreate)
	o.SetEcho(step.Echo)
	o.SetSuppressData(step.Suppress)
	if s := step.Script; s != nil {
		o.SetScript(s.Name, s.Param)
	}
	if s := step.PreScript; s != nil {
		o.SetPreScript(s.Name, s.Param)
	}
	if s := step.PostScript; s != nil {
		o.SetPostScript(s.Name, s.Param)
	}

	msg, err := h.dispatch(ctx, o, step)
	seq := h.seq.Next()
	if err != nil {
		result.AddErrorTrace(step.Op, err, seq)
	} else {
		result.AddMessageTrace(step.Op, msg, seq)
	}

	for _, problem := range checkExpect(step.Expect, msg, err) {
		result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, step.Op, problem))
	}
	h.log.Debugw("step completed", "step", i, "op", step.Op, "seq", seq, "error", err)
}

func (h *Harness) dispatch(ctx context.Context, o *orchestrator.Orchestrator, step Step) (*record.Message, error) {
	in := record.NewMessage()
	for _, r := range step.Records {
		in.AddRecord(record.Record{RecordID: r.ID, Fields: r.Fields.Fields})
	}

	switch step.Op {
	case OpCreate:
		if step.Single {
			return o.CreateOne(ctx, in.Records[0].Fields)
		}
		return o.Create(ctx, in)
	case OpRead:
		if step.Single {
			return o.ReadOne(ctx, in.Records[0].RecordID)
		}
		return o.Read(ctx, in)
	case OpUpdate:
		if step.Single {
			return o.UpdateOne(ctx, in.Records[0].RecordID, in.Records[0].Fields)
		}
		return o.Update(ctx, in)
	case OpDelete:
		if step.Single {
			return o.DeleteOne(ctx, in.Records[0].RecordID)
		}
		return o.Delete(ctx, in)
	case OpLayout:
		if err := o.SetQuery(step.Query); err != nil {
			return nil, err
		}
		o.SetWindow(step.Skip, step.Limit)
		return o.ReadLayout(ctx)
	case OpScript:
		return o.RunScript(ctx)
	}
	return nil, backend.NewBadRequest(fmt.Errorf("unknown op %q", step.Op))
}

// checkExpect compares a step outcome with its expect clause. A nil clause
// expects success.
func checkExpect(exp *Expect, msg *record.Message, err error) []string {
	if exp == nil {
		exp = &Expect{}
	}
	if exp.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected %s error, step succeeded", exp.Error)}
		}
		if got := string(backend.CategoryOf(err)); got != exp.Error {
			return []string{fmt.Sprintf("expected %s error, got %s: %v", exp.Error, got, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var problems []string
	if exp.Records != nil && len(msg.Records) != *exp.Records {
		problems = append(problems, fmt.Sprintf("expected %d records, got %d", *exp.Records, len(msg.Records)))
	}
	if exp.Failures != nil && len(msg.Multistatus) != *exp.Failures {
		problems = append(problems, fmt.Sprintf("expected %d failures, got %d", *exp.Failures, len(msg.Multistatus)))
	}
	for k, want := range exp.Info {
		got, ok := msg.Info.Get(k)
		if !ok || got != want {
			problems = append(problems, fmt.Sprintf("expected info %s=%q, got %q", k, want, got))
		}
	}
	return problems
}
