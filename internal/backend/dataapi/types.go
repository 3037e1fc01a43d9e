package dataapi

import (
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/roach88/restgate/internal/queryjson"
	"github.com/roach88/restgate/internal/record"
)

// envelope wraps every data API response.
type envelope struct {
	Response gojson.RawMessage `json:"response"`
	Messages []message         `json:"messages"`
}

type message struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// code returns the first message code as an integer, 0 when absent.
func (e *envelope) code() (int, string) {
	if len(e.Messages) == 0 {
		return 0, ""
	}
	n, _ := strconv.Atoi(e.Messages[0].Code)
	return n, e.Messages[0].Message
}

type sessionResponse struct {
	Token string `json:"token"`
}

type dataInfo struct {
	Database         string `json:"database"`
	Layout           string `json:"layout"`
	Table            string `json:"table"`
	TotalRecordCount int    `json:"totalRecordCount"`
	FoundCount       int    `json:"foundCount"`
	ReturnedCount    int    `json:"returnedCount"`
}

type recordData struct {
	FieldData *record.Fields `json:"fieldData"`
	RecordID  string         `json:"recordId"`
	ModID     string         `json:"modId"`
}

// recordsResponse is the response of record reads and finds. Script results
// share the object.
type recordsResponse struct {
	DataInfo *dataInfo    `json:"dataInfo"`
	Data     []recordData `json:"data"`
	scriptInfo
}

type scriptInfo struct {
	ScriptResultPreRequest string `json:"scriptResult.prerequest,omitempty"`
	ScriptErrorPreRequest  string `json:"scriptError.prerequest,omitempty"`
	ScriptResultPreSort    string `json:"scriptResult.presort,omitempty"`
	ScriptErrorPreSort     string `json:"scriptError.presort,omitempty"`
	ScriptResult           string `json:"scriptResult,omitempty"`
	ScriptError            string `json:"scriptError,omitempty"`
}

// info renders script outcomes into an Info map.
func (s scriptInfo) info() *record.Fields {
	out := record.NewFields()
	set := func(key, value string) {
		if value != "" {
			out.Set(key, value)
		}
	}
	set(record.InfoScriptResult+".prerequest", s.ScriptResultPreRequest)
	set(record.InfoScriptError+".prerequest", s.ScriptErrorPreRequest)
	set(record.InfoScriptResult+".presort", s.ScriptResultPreSort)
	set(record.InfoScriptError+".presort", s.ScriptErrorPreSort)
	set(record.InfoScriptResult, s.ScriptResult)
	set(record.InfoScriptError, s.ScriptError)
	return out
}

type writeResponse struct {
	RecordID string `json:"recordId"`
	ModID    string `json:"modId"`
	scriptInfo
}

type fieldMetaData struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Result    string `json:"result"`
	Global    bool   `json:"global"`
	AutoEnter bool   `json:"autoEnter"`
	MaxRepeat int    `json:"maxRepeat"`
}

type layoutResponse struct {
	FieldMetaData []fieldMetaData `json:"fieldMetaData"`
}

type namedItem struct {
	Name     string      `json:"name"`
	IsFolder bool        `json:"isFolder"`
	Items    []namedItem `json:"folderLayoutNames,omitempty"`
}

type databasesResponse struct {
	Databases []namedItem `json:"databases"`
}

type layoutsResponse struct {
	Layouts []namedItem `json:"layouts"`
}

type scriptsResponse struct {
	Scripts []namedItem `json:"scripts"`
}

// flatten lists the non-folder names, descending into layout folders.
func flatten(items []namedItem) []string {
	var out []string
	for _, it := range items {
		if it.IsFolder {
			out = append(out, flatten(it.Items)...)
			continue
		}
		out = append(out, it.Name)
	}
	return out
}

// writeBody is the body of create and update calls.
type writeBody struct {
	FieldData map[string]string `json:"fieldData"`
	scriptParams
}

type scriptParams struct {
	PreRequest      string `json:"script.prerequest,omitempty"`
	PreRequestParam string `json:"script.prerequest.param,omitempty"`
	Script          string `json:"script,omitempty"`
	ScriptParam     string `json:"script.param,omitempty"`
}

// findBody extends the compiled query with hook scripts.
type findBody struct {
	Query  []queryjson.FindRequest `json:"query"`
	Sort   []queryjson.SortRule    `json:"sort,omitempty"`
	Offset int                     `json:"offset,omitempty"`
	Limit  *int                    `json:"limit,omitempty"`
	scriptParams
}

// decodeFieldData converts fieldData into record fields. The bare key is
// repetition 1 and name(n) is repetition n. Each field's repetitions are
// gathered and stored with record.ExpandField, so a repeating field gets
// the same keys it gets from the legacy connector.
func decodeFieldData(fd *record.Fields, selected map[string]bool) *record.Fields {
	var order []string
	reps := make(map[string][]string)
	for key, value := range fd.All() {
		name, idx := splitRepetition(key)
		if len(selected) > 0 && !selected[name] {
			continue
		}
		vals, seen := reps[name]
		if !seen {
			order = append(order, name)
		}
		for len(vals) <= idx {
			vals = append(vals, "")
		}
		vals[idx] = value
		reps[name] = vals
	}

	out := record.NewFields()
	for _, name := range order {
		record.ExpandField(out, name, reps[name])
	}
	return out
}

// splitRepetition splits "name(n)" into name and the zero-based index n-1.
// Any other key is repetition 1 of itself.
func splitRepetition(key string) (string, int) {
	open := strings.LastIndexByte(key, '(')
	if open <= 0 || !strings.HasSuffix(key, ")") {
		return key, 0
	}
	n, err := strconv.Atoi(key[open+1 : len(key)-1])
	if err != nil || n < 1 {
		return key, 0
	}
	return key[:open], n - 1
}

// encodeFieldData converts collapsed fields into name or name(n) keys.
func encodeFieldData(fields []record.RepeatedField) map[string]string {
	out := make(map[string]string)
	for _, rf := range fields {
		if !rf.Indexed {
			v := ""
			if len(rf.Reps) > 0 {
				v = rf.Reps[0].Value
			}
			out[rf.Name] = v
			continue
		}
		for _, rep := range rf.Reps {
			out[rf.Name+"("+strconv.Itoa(rep.Index+1)+")"] = rep.Value
		}
	}
	return out
}
