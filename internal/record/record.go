// Package record holds the loosely typed upstream order records and the
// fixed-column projections written to the CSV log.
package record

import (
	"strconv"
	"strings"
)

// Field names used outside the projection.
const (
	DocumentNumber  = "document_number"
	PublicationDate = "publication_date"
	Title           = "title"
)

// Record is one entry of the documents API "results" array.
type Record map[string]any

// String returns the field rendered as text, or "" when absent.
func (r Record) String(field string) string {
	return scalar(r[field])
}

// Joined returns a list-valued field joined with ", ". Anything that is
// not a list yields "".
func (r Record) Joined(field string) string {
	list, ok := r[field].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = scalar(v)
	}
	return strings.Join(parts, ", ")
}

// Sub returns one named field of an object-valued field, or "" when the
// value is not an object.
func (r Record) Sub(field, key string) string {
	obj, ok := r[field].(map[string]any)
	if !ok {
		return ""
	}
	return scalar(obj[key])
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
