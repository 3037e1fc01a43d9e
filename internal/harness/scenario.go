package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/restgate/internal/record"
)

// Scenario is a gateway conformance scenario: a SQLite database seeded by
// Setup, a sequence of orchestrator operations against one table, and
// assertions over the trace and the final table contents.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Database is the database name the connector reports. Defaults to
	// "scenario".
	Database string `yaml:"database,omitempty"`

	// Layout is the table every step runs against.
	Layout string `yaml:"layout"`

	// IDColumn overrides the record ID column (rowid by default).
	IDColumn string `yaml:"id_column,omitempty"`

	// Scripts are the named statements available to script steps and
	// pre/post hooks.
	Scripts map[string]string `yaml:"scripts,omitempty"`

	// MaxRecords is the default page size of layout steps.
	MaxRecords int `yaml:"max_records,omitempty"`

	// RequestID is the fixed correlation ID stamped on every message.
	// Defaults to "test-request".
	RequestID string `yaml:"request_id,omitempty"`

	// Setup holds SQL statements run before the first step.
	Setup []string `yaml:"setup"`

	// Steps are the operations, run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and table contents.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Operation names a step can run.
const (
	OpCreate = "create"
	OpRead   = "read"
	OpUpdate = "update"
	OpDelete = "delete"
	OpLayout = "layout"
	OpScript = "script"
)

var validOps = map[string]bool{
	OpCreate: true, OpRead: true, OpUpdate: true, OpDelete: true, OpLayout: true, OpScript: true,
}

// Step is one orchestrator operation.
type Step struct {
	Op string `yaml:"op"`

	// Single runs the one-record variant (CreateOne, ReadOne, ...), which
	// raises instead of reporting multistatus rows.
	Single bool `yaml:"single,omitempty"`

	// Records are the batch items. ID may be an opaque record ID or a
	// field=value unique key.
	Records []StepRecord `yaml:"records,omitempty"`

	// Query, Skip and Limit drive layout steps. Skip -1 reads the last
	// page.
	Query string `yaml:"query,omitempty"`
	Skip  int    `yaml:"skip,omitempty"`
	Limit int    `yaml:"limit,omitempty"`

	Script     *ScriptRef `yaml:"script,omitempty"`
	PreScript  *ScriptRef `yaml:"pre_script,omitempty"`
	PostScript *ScriptRef `yaml:"post_script,omitempty"`

	Append           bool `yaml:"append,omitempty"`
	UpdateElseCreate bool `yaml:"update_else_create,omitempty"`
	Echo             bool `yaml:"echo,omitempty"`
	Suppress         bool `yaml:"suppress,omitempty"`

	// Expect checks the step's outcome. Nil means the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// StepRecord is one batch item.
type StepRecord struct {
	ID     string `yaml:"id,omitempty"`
	Fields Fields `yaml:"fields,omitempty"`
}

// ScriptRef names a configured script and its parameter.
type ScriptRef struct {
	Name  string `yaml:"name"`
	Param string `yaml:"param,omitempty"`
}

// Expect is the expected outcome of a step. Records, Failures and Info are
// only checked when set.
type Expect struct {
	// Error is the expected error category (NOT_FOUND, CONFLICT, ...).
	// Empty means success.
	Error string `yaml:"error,omitempty"`

	// Records is the number of records the message carries.
	Records *int `yaml:"records,omitempty"`

	// Failures is the number of multistatus rows.
	Failures *int `yaml:"failures,omitempty"`

	// Info is a subset of the message info.
	Info map[string]string `yaml:"info,omitempty"`
}

// Fields is a field map that keeps the order the YAML lists it in.
type Fields struct {
	*record.Fields
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Fields) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", n.Line)
	}
	f.Fields = record.NewFields()
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: field %s must be a scalar", val.Line, key.Value)
		}
		f.Set(key.Value, val.Value)
	}
	return nil
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_order": ops appear in this order (gaps allowed)
	// - "trace_count": op appears exactly Count times
	// - "final_state": exactly one row matches Where and carries Expect
	// - "row_count": Count rows match Where
	Type string `yaml:"type"`

	// Op is the step operation (trace_count).
	Op string `yaml:"op,omitempty"`

	// Ops is the expected operation order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Table is the table to query (final_state, row_count).
	Table string `yaml:"table,omitempty"`

	// Where filters rows by column equality.
	Where map[string]string `yaml:"where,omitempty"`

	// Expect holds expected column values (final_state, subset match).
	Expect map[string]string `yaml:"expect,omitempty"`

	// Count is the expected number (trace_count, row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceOrder = "trace_order"
	AssertTraceCount = "trace_count"
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file
// name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Layout == "" {
		return fmt.Errorf("layout is required")
	}
	if len(s.Setup) == 0 {
		return fmt.Errorf("setup list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step *Step) error {
	if !validOps[step.Op] {
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	switch step.Op {
	case OpCreate, OpRead, OpUpdate, OpDelete:
		if len(step.Records) == 0 {
			return fmt.Errorf("steps[%d]: %s needs records", i, step.Op)
		}
		if step.Single && len(step.Records) != 1 {
			return fmt.Errorf("steps[%d]: single %s takes exactly one record", i, step.Op)
		}
	case OpScript:
		if step.Script == nil || step.Script.Name == "" {
			return fmt.Errorf("steps[%d]: script step needs script.name", i)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
