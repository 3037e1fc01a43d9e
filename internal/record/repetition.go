package record

import (
	"strconv"
	"strings"
)

// Repetition is one addressed value of a repeating field.
type Repetition struct {
	Index int
	Value string
}

// RepeatedField is a field after suffix collapse: one name and the
// repetitions written to it, in the order they appeared.
//
// Indexed is false for a bare name (a single value at index 0) and true when
// the caller used [n] suffixes, so that a collapse followed by an expand gives
// back exactly the keys that went in.
type RepeatedField struct {
	Name    string
	Indexed bool
	Reps    []Repetition
}

// SplitSuffix splits "name[n]" into its name and index. Keys without a
// well-formed non-negative decimal suffix (no sign, no leading zeros) are
// not repetition keys and return ok=false.
func SplitSuffix(key string) (name string, index int, ok bool) {
	if !strings.HasSuffix(key, "]") {
		return key, 0, false
	}
	open := strings.LastIndexByte(key, '[')
	if open <= 0 {
		return key, 0, false
	}
	digits := key[open+1 : len(key)-1]
	if digits == "" || (len(digits) > 1 && digits[0] == '0') {
		return key, 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return key, 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return key, 0, false
	}
	return key[:open], n, true
}

// RepetitionKey builds the suffixed key for repetition index of name.
func RepetitionKey(name string, index int) string {
	return name + "[" + strconv.Itoa(index) + "]"
}

// CollapseRepetitions groups suffixed keys back into one field per name.
// Fields keep the order of their first key.
func CollapseRepetitions(f *Fields) []RepeatedField {
	type groupKey struct {
		name    string
		indexed bool
	}
	var out []RepeatedField
	pos := make(map[groupKey]int)

	for key, value := range f.All() {
		name, idx, indexed := SplitSuffix(key)
		gk := groupKey{name: name, indexed: indexed}
		i, seen := pos[gk]
		if !seen {
			i = len(out)
			pos[gk] = i
			out = append(out, RepeatedField{Name: name, Indexed: indexed})
		}
		out[i].Reps = append(out[i].Reps, Repetition{Index: idx, Value: value})
	}
	return out
}

// ExpandRepetitions is the inverse of CollapseRepetitions.
func ExpandRepetitions(fields []RepeatedField) *Fields {
	out := NewFields()
	for _, rf := range fields {
		if !rf.Indexed {
			v := ""
			if len(rf.Reps) > 0 {
				v = rf.Reps[0].Value
			}
			out.Set(rf.Name, v)
			continue
		}
		for _, rep := range rf.Reps {
			out.Set(RepetitionKey(rf.Name, rep.Index), rep.Value)
		}
	}
	return out
}

// ExpandField stores a field read from a backend. A single value keeps the
// bare name; more values become name[0] .. name[n-1].
func ExpandField(dst *Fields, name string, values []string) {
	switch len(values) {
	case 0:
		dst.Set(name, "")
	case 1:
		dst.Set(name, values[0])
	default:
		for i, v := range values {
			dst.Set(RepetitionKey(name, i), v)
		}
	}
}
