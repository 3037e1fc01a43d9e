package record

import (
	"bytes"
	"fmt"
	"strconv"

	gojson "github.com/goccy/go-json"
)

// Record is one logical row.
type Record struct {
	RecordID string  `json:"recordID,omitempty"`
	Href     string  `json:"href,omitempty"`
	Fields   *Fields `json:"fields,omitempty"`
}

// NewRecord creates a record with an empty field map.
func NewRecord(recordID string) Record {
	return Record{RecordID: recordID, Fields: NewFields()}
}

// FieldMeta describes one field of a layout or table.
type FieldMeta struct {
	Name        string `json:"name"`
	AutoEntered bool   `json:"autoEntered"`
	Global      bool   `json:"global"`
	MaxRepeat   int    `json:"maxRepeat"`
	ResultType  string `json:"resultType"`
	NativeType  string `json:"nativeType,omitempty"`
}

// Result types shared by all connectors.
const (
	ResultText      = "text"
	ResultNumber    = "number"
	ResultDate      = "date"
	ResultTime      = "time"
	ResultTimestamp = "timestamp"
	ResultContainer = "container"
)

// StatusEntry records one failed item of a bulk batch.
//
// Index is set for items that had no record ID yet (create, and the create
// fallback of update); RecordID is set otherwise.
type StatusEntry struct {
	Index    *int   `json:"index,omitempty"`
	RecordID string `json:"recordID,omitempty"`
	Status   int    `json:"Status"`
	Code     int    `json:"Code,omitempty"`
	Reason   string `json:"Reason"`
}

// Key returns the index or record ID the entry correlates with.
func (e StatusEntry) Key() string {
	if e.Index != nil {
		return strconv.Itoa(*e.Index)
	}
	return e.RecordID
}

// NavLink is a pagination descriptor for the link builder.
type NavLink struct {
	Name string `json:"name"` // start, prev, next, end
	Skip int    `json:"skip"`
	Max  int    `json:"max"`
}

// Message is the envelope every operation returns.
type Message struct {
	Records     []Record      `json:"data,omitempty"`
	MetaFields  []FieldMeta   `json:"metaField,omitempty"`
	Multistatus []StatusEntry `json:"multistatus,omitempty"`
	Info        *Fields       `json:"info,omitempty"`
	Nav         []NavLink     `json:"nav,omitempty"`
}

// NewMessage creates an empty message.
func NewMessage() *Message {
	return &Message{Info: NewFields()}
}

// AddRecord appends r.
func (m *Message) AddRecord(r Record) {
	m.Records = append(m.Records, r)
}

// MergeMeta adds field descriptors not already present, by name.
func (m *Message) MergeMeta(meta []FieldMeta) {
	seen := make(map[string]bool, len(m.MetaFields))
	for _, fm := range m.MetaFields {
		seen[fm.Name] = true
	}
	for _, fm := range meta {
		if seen[fm.Name] {
			continue
		}
		seen[fm.Name] = true
		m.MetaFields = append(m.MetaFields, fm)
	}
}

// AddIndexStatus appends a multistatus entry keyed by batch index.
func (m *Message) AddIndexStatus(index, status, code int, reason string) {
	i := index
	m.Multistatus = append(m.Multistatus, StatusEntry{Index: &i, Status: status, Code: code, Reason: reason})
}

// AddRecordStatus appends a multistatus entry keyed by record identifier.
func (m *Message) AddRecordStatus(recordID string, status, code int, reason string) {
	m.Multistatus = append(m.Multistatus, StatusEntry{RecordID: recordID, Status: status, Code: code, Reason: reason})
}

// SetInfo stores an operational metadata value.
func (m *Message) SetInfo(key, value string) {
	if m.Info == nil {
		m.Info = NewFields()
	}
	m.Info.Set(key, value)
}

// SetInfoInt stores an integer operational metadata value.
func (m *Message) SetInfoInt(key string, value int) {
	m.SetInfo(key, strconv.Itoa(value))
}

// Info keys written by the orchestrator.
const (
	InfoFoundSetCount = "foundSetCount"
	InfoFetchCount    = "fetchCount"
	InfoSkip          = "skip"
	InfoTableCount    = "tableRecordCount"
	InfoScriptResult  = "scriptResult"
	InfoScriptError   = "scriptError"
	InfoRequestID     = "requestID"
)

// MarshalIndent renders the message as indented JSON.
func (m *Message) MarshalIndent() ([]byte, error) {
	return gojson.MarshalIndent(m, "", "  ")
}

// ParseMessage decodes a request body. It accepts a message with a "data"
// list, a list of field objects, or a single field object.
func ParseMessage(data []byte) (*Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	if data[0] == '[' {
		var list []*Fields
		if err := gojson.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode record list: %w", err)
		}
		m := NewMessage()
		for _, f := range list {
			m.AddRecord(Record{Fields: f})
		}
		return m, nil
	}

	var envelope map[string]gojson.RawMessage
	if err := gojson.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if _, ok := envelope["data"]; ok {
		m := NewMessage()
		if err := gojson.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return m, nil
	}

	f := NewFields()
	if err := f.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	m := NewMessage()
	m.AddRecord(Record{Fields: f})
	return m, nil
}
