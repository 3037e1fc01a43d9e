package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	gojson "github.com/goccy/go-json"
)

// schema constrains a decoded Config. Durations arrive as nanoseconds.
const schema = `
#Duration: int & >=0

#SQLMapping: {
	driver:    "sqlite3" | "postgres" | "pgx"
	dsn:       string & !=""
	id_column: string
	scripts?: [string]: string & !=""
}

#Config: {
	backend: "legacy" | "dataapi" | "none"
	legacy: {
		url:     string
		timeout: #Duration
	}
	dataapi: {
		url:           string
		version:       string & !=""
		timeout:       #Duration
		login_retries: int & >=0 & <=10
	}
	sql?: [string]: #SQLMapping
	http: max_records: int & >0

	if backend == "legacy" {
		legacy: url: =~"^https?://"
	}
	if backend == "dataapi" {
		dataapi: url: =~"^https?://"
	}
}
`

// Validate checks cfg against the schema. The returned error wraps
// ErrInvalid and lists every violation CUE reports.
func Validate(cfg *Config) error {
	data, err := gojson.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	ctx := cuecontext.New()
	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := def.Unify(ctx.CompileBytes(data, cue.Filename("config.json")))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	return nil
}
