package serializer

import (
	"fmt"
	"strconv"
	"strings"
)

// fieldDelimiter separates fields within one compact-serialized line. The
// ASCII unit separator is used instead of a printable character so ordinary
// transaction payloads (including commas, colons, pipes) never need escaping.
const fieldDelimiter = "\x1f"

// CompactSerializer is a line-oriented text Serializer. Fields are encoded
// in the order declared by Fields and joined with fieldDelimiter. It is the
// serializer used by the text-line and chunked-file transaction log stores.
//
// Deserializing a line with fewer columns than the current schema assigns
// the missing trailing fields their type's zero value — this is what lets
// the ledger append new fields to a schema without invalidating leaf hashes
// computed against records written under an older, shorter schema.
type CompactSerializer struct {
	Fields OrderedFields
}

// NewCompactSerializer returns a CompactSerializer for the given schema.
func NewCompactSerializer(fields OrderedFields) *CompactSerializer {
	return &CompactSerializer{Fields: fields}
}

func (s *CompactSerializer) Serialize(t Txn) ([]byte, error) {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		v, ok := t[f.Name]
		if !ok {
			cols[i] = ""
			continue
		}
		switch f.Kind {
		case KindInt:
			n, err := toInt64(v)
			if err != nil {
				return nil, &Error{Op: "serialize field " + f.Name, Err: err}
			}
			cols[i] = strconv.FormatInt(n, 10)
		default:
			cols[i] = toStr(v)
		}
	}
	return []byte(strings.Join(cols, fieldDelimiter)), nil
}

func (s *CompactSerializer) Deserialize(b []byte) (Txn, error) {
	cols := strings.Split(string(b), fieldDelimiter)
	t := make(Txn, len(s.Fields))
	for i, f := range s.Fields {
		if i >= len(cols) || cols[i] == "" {
			t[f.Name] = zeroValue(f.Kind)
			continue
		}
		switch f.Kind {
		case KindInt:
			n, err := strconv.ParseInt(cols[i], 10, 64)
			if err != nil {
				return nil, &Error{Op: "decode field " + f.Name, Err: err}
			}
			t[f.Name] = n
		default:
			t[f.Name] = cols[i]
		}
	}
	return t, nil
}

func toStr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("value %v is not an integer", v)
	}
}
