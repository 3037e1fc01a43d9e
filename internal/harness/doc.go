// Package harness runs gateway conformance scenarios.
//
// A scenario seeds an in-memory SQLite database, runs a sequence of
// orchestrator operations against one table through the SQL connector, and
// checks each step's outcome, the final table contents, and the exact
// messages produced.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	layout: tasks
//	setup:
//	  - CREATE TABLE tasks (Title TEXT UNIQUE, Status TEXT DEFAULT 'open')
//	scripts:
//	  close_all: UPDATE tasks SET Status = 'done'
//	steps:
//	  - op: create
//	    records:
//	      - fields: { Title: a }
//	  - op: read
//	    records:
//	      - id: Title=a
//	      - id: Title=missing
//	    expect:
//	      records: 1
//	      failures: 1
//	  - op: update
//	    single: true
//	    records:
//	      - id: Title=missing
//	    expect:
//	      error: NOT_FOUND
//	assertions:
//	  - type: final_state
//	    table: tasks
//	    where: { Title: a }
//	    expect: { Status: open }
//
// Step ops are create, read, update, delete, layout and script. Step flags
// (single, append, update_else_create, echo, suppress, pre_script,
// post_script) map onto the orchestrator setters of the same name.
//
// # Determinism
//
// Every orchestrator gets the same fixed request ID and every step a
// sequence number, so a trace is byte-identical across runs and can be
// compared against a golden file with RunWithGolden.
package harness
