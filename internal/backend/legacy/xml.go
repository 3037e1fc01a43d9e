package legacy

import (
	"encoding/xml"
	"strings"

	"github.com/roach88/restgate/internal/record"
)

// resultSet is the fmresultset document every command answers with.
type resultSet struct {
	XMLName    xml.Name       `xml:"fmresultset"`
	Error      errorElem      `xml:"error"`
	Datasource datasourceElem `xml:"datasource"`
	Metadata   metadataElem   `xml:"metadata"`
	Records    recordsElem    `xml:"resultset"`
}

type errorElem struct {
	Code int `xml:"code,attr"`
}

type datasourceElem struct {
	Database   string `xml:"database,attr"`
	Layout     string `xml:"layout,attr"`
	Table      string `xml:"table,attr"`
	TotalCount int    `xml:"total-count,attr"`
}

type metadataElem struct {
	Fields []fieldDefinition `xml:"field-definition"`
}

type fieldDefinition struct {
	Name      string `xml:"name,attr"`
	AutoEnter string `xml:"auto-enter,attr"`
	Global    string `xml:"global,attr"`
	MaxRepeat int    `xml:"max-repeat,attr"`
	Result    string `xml:"result,attr"`
	Type      string `xml:"type,attr"`
}

type recordsElem struct {
	Count     int          `xml:"count,attr"`
	FetchSize int          `xml:"fetch-size,attr"`
	Records   []recordElem `xml:"record"`
}

type recordElem struct {
	RecordID string      `xml:"record-id,attr"`
	ModID    string      `xml:"mod-id,attr"`
	Fields   []fieldElem `xml:"field"`
}

type fieldElem struct {
	Name string   `xml:"name,attr"`
	Data []string `xml:"data"`
}

// meta converts the field definitions.
func (rs *resultSet) meta() []record.FieldMeta {
	out := make([]record.FieldMeta, 0, len(rs.Metadata.Fields))
	for _, fd := range rs.Metadata.Fields {
		maxRepeat := fd.MaxRepeat
		if maxRepeat < 1 {
			maxRepeat = 1
		}
		out = append(out, record.FieldMeta{
			Name:        fd.Name,
			AutoEntered: fd.AutoEnter == "yes",
			Global:      fd.Global == "yes",
			MaxRepeat:   maxRepeat,
			ResultType:  resultType(fd.Result),
			NativeType:  fd.Type,
		})
	}
	return out
}

func resultType(s string) string {
	switch strings.ToLower(s) {
	case "number":
		return record.ResultNumber
	case "date":
		return record.ResultDate
	case "time":
		return record.ResultTime
	case "timestamp":
		return record.ResultTimestamp
	case "container":
		return record.ResultContainer
	default:
		return record.ResultText
	}
}

// records converts the result set rows, keeping only selected fields when
// a selection is given.
func (rs *resultSet) records(selected []string) []record.Record {
	keep := make(map[string]bool, len(selected))
	for _, f := range selected {
		name, _, _ := record.SplitSuffix(f)
		keep[name] = true
	}

	out := make([]record.Record, 0, len(rs.Records.Records))
	for _, re := range rs.Records.Records {
		r := record.NewRecord(re.RecordID)
		for _, f := range re.Fields {
			if len(keep) > 0 && !keep[f.Name] {
				continue
			}
			record.ExpandField(r.Fields, f.Name, f.Data)
		}
		out = append(out, r)
	}
	return out
}

// names collects the single-column listings returned by -dbnames,
// -layoutnames, and -scriptnames.
func (rs *resultSet) names(column string) []string {
	var out []string
	for _, re := range rs.Records.Records {
		for _, f := range re.Fields {
			if f.Name == column && len(f.Data) > 0 {
				out = append(out, f.Data[0])
			}
		}
	}
	return out
}
