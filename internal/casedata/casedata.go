// Package casedata loads counseling case records and prepares them for the
// dialogue agents and the converter.
//
// Source documents are JSON: either a bare list of records, an object with
// the list under a conventional container key, or a single record carrying
// an id. Records stay free-form maps; this package never interprets fields
// beyond the ones it is asked for.
package casedata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// containerKeys are the object keys checked, in order, for the record list
// when the document is not a bare list.
var containerKeys = []string{"patients", "cases", "records"}

// maxKnownIDs caps the id list carried by a NotFoundError.
const maxKnownIDs = 20

// Record is one raw case record as decoded from the source document.
type Record map[string]any

// ID returns the record's id field as a string, empty when absent.
func (r Record) ID() string {
	return r.String("id")
}

// String returns the named field stringified, empty when absent or nil.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// NotFoundError reports a failed id lookup along with the ids that exist,
// sorted and capped so the message stays readable on large collections.
type NotFoundError struct {
	ID    string
	Known []string
}

func (e *NotFoundError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("case record %q not found (no records loaded)", e.ID)
	}
	return fmt.Sprintf("case record %q not found (known ids: %s)", e.ID, strings.Join(e.Known, ", "))
}

// Source is a loaded collection of case records.
type Source struct {
	records []Record
}

// Load reads and decodes the case document at path.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening case file: %w", err)
	}
	defer f.Close()

	src, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding case file %s: %w", path, err)
	}
	return src, nil
}

// Decode decodes a case document from r. Accepted shapes: a JSON list of
// records, an object with the list under "patients"/"cases"/"records", or a
// single record object with an "id" field. Anything else is rejected.
func Decode(r io.Reader) (*Source, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing case document: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		return fromList(v)
	case map[string]any:
		for _, key := range containerKeys {
			list, ok := v[key]
			if !ok {
				continue
			}
			items, ok := list.([]any)
			if !ok {
				return nil, fmt.Errorf("case document: %q must hold a list, got %T", key, list)
			}
			return fromList(items)
		}
		if _, ok := v["id"]; ok {
			return &Source{records: []Record{Record(v)}}, nil
		}
		return nil, fmt.Errorf("case document: object has no %s list and no id", strings.Join(containerKeys, "/"))
	default:
		return nil, fmt.Errorf("case document: expected a list or object, got %T", raw)
	}
}

func fromList(items []any) (*Source, error) {
	records := make([]Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("case document: record %d is %T, expected an object", i, item)
		}
		records = append(records, Record(m))
	}
	return &Source{records: records}, nil
}

// Len returns the number of records.
func (s *Source) Len() int {
	return len(s.records)
}

// Records returns the records in document order.
func (s *Source) Records() []Record {
	return s.records
}

// At returns the record at index i.
func (s *Source) At(i int) (Record, error) {
	if i < 0 || i >= len(s.records) {
		return nil, fmt.Errorf("case index out of range: %d (have %d)", i, len(s.records))
	}
	return s.records[i], nil
}

// First returns the first record.
func (s *Source) First() (Record, error) {
	if len(s.records) == 0 {
		return nil, fmt.Errorf("case document holds no records")
	}
	return s.records[0], nil
}

// Lookup finds the record whose id matches the given id exactly after
// trimming surrounding whitespace on both sides of the comparison.
func (s *Source) Lookup(id string) (Record, error) {
	want := strings.TrimSpace(id)
	for _, rec := range s.records {
		if strings.TrimSpace(rec.ID()) == want {
			return rec, nil
		}
	}
	return nil, &NotFoundError{ID: id, Known: s.knownIDs()}
}

// IDs returns every record id, sorted.
func (s *Source) IDs() []string {
	ids := make([]string, 0, len(s.records))
	for _, rec := range s.records {
		if id := rec.ID(); id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Source) knownIDs() []string {
	ids := s.IDs()
	if len(ids) > maxKnownIDs {
		ids = ids[:maxKnownIDs]
	}
	return ids
}
