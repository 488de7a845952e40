// Document model for run files.
//
// Every line of a run file is a two-element JSON array: the document kind
// and the document body, e.g. ["event", {"uid": ..., "descriptor": ...}].
// Bodies keep their raw bytes so that re-encoding a document reproduces the
// field order of the source line. Fields are decoded once into a map for
// matching and lookup.
package runlog

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Kind is the document type named in the first element of a line.
type Kind string

// Document kinds understood by the catalog. Lines of any other kind are
// read without error and skipped by every accessor.
const (
	KindStart      Kind = "start"
	KindDescriptor Kind = "descriptor"
	KindEvent      Kind = "event"
	KindResource   Kind = "resource"
	KindDatum      Kind = "datum"
	KindStop       Kind = "stop"
)

// Document is the body of one line.
type Document struct {
	raw    []byte         // source bytes, nil once modified
	fields map[string]any // decoded body
}

// Record pairs a document with its kind. It encodes back to the on-disk
// [kind, body] form.
type Record struct {
	Kind Kind
	Doc  *Document
}

// MarshalJSON encodes the record as a [kind, body] array.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.Kind, r.Doc})
}

// ref holds the fields cursors filter on. Decoding into it first lets a scan
// skip documents without building the full field map.
type ref struct {
	UID        string
	Descriptor string
	Resource   string
	DatumID    string
}

// NewDocument builds a document from decoded fields. It has no source bytes,
// so it encodes by marshalling the map (keys sorted).
func NewDocument(fields map[string]any) *Document {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Document{fields: fields}
}

// parseDocument decodes a body object. The input is copied because scanner
// buffers are reused between lines.
func parseDocument(raw []byte) (*Document, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: body: %w", ErrMalformedDocument, err)
	}
	return &Document{raw: bytes.Clone(raw), fields: fields}, nil
}

// decodeLine splits a line into its kind and raw body. The body is checked
// to be a JSON object but is not decoded.
func decodeLine(line []byte) (Kind, []byte, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(line, &pair); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if len(pair) != 2 {
		return "", nil, fmt.Errorf("%w: record has %d elements, want 2", ErrMalformedDocument, len(pair))
	}
	var kind string
	if err := json.Unmarshal(pair[0], &kind); err != nil {
		return "", nil, fmt.Errorf("%w: kind is not a string", ErrMalformedDocument)
	}
	body := bytes.TrimSpace(pair[1])
	if len(body) == 0 || body[0] != '{' {
		return "", nil, fmt.Errorf("%w: %s body is not an object", ErrMalformedDocument, kind)
	}
	return Kind(kind), body, nil
}

// refString decodes a reference field. A value that is not a JSON string
// decodes to "" and so never equals a uid; kinds that do not use the field
// are not rejected for carrying it with another type.
type refString string

func (s *refString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	*s = refString(v)
	return nil
}

// peek decodes only the reference fields of a body.
func peek(body []byte) (ref, error) {
	var r struct {
		UID        refString `json:"uid"`
		Descriptor refString `json:"descriptor"`
		Resource   refString `json:"resource"`
		DatumID    refString `json:"datum_id"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ref{}, fmt.Errorf("%w: body: %w", ErrMalformedDocument, err)
	}
	return ref{
		UID:        string(r.UID),
		Descriptor: string(r.Descriptor),
		Resource:   string(r.Resource),
		DatumID:    string(r.DatumID),
	}, nil
}

// Fields returns the decoded body. The map is shared with the document;
// use Set to modify it so the encoded form stays in sync.
func (d *Document) Fields() map[string]any {
	return d.fields
}

// Get returns the top-level field key, or nil.
func (d *Document) Get(key string) any {
	return d.fields[key]
}

// String returns the top-level field key if it is a string.
func (d *Document) String(key string) string {
	s, _ := d.fields[key].(string)
	return s
}

// Float returns the top-level field key if it is a number.
func (d *Document) Float(key string) (float64, bool) {
	return number(d.fields[key])
}

// Set assigns a top-level field. The document is re-encoded from its
// fields afterwards, so source field order is lost.
func (d *Document) Set(key string, value any) {
	d.fields[key] = value
	d.raw = nil
}

// Lookup resolves a dotted path such as "data_keys.det.shape.0". Numeric
// segments index arrays.
func (d *Document) Lookup(path string) (any, bool) {
	var cur any = d.fields
	for seg := range strings.SplitSeq(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Raw returns the source bytes, or nil if the document was built or
// modified in memory.
func (d *Document) Raw() []byte {
	return d.raw
}

// MarshalJSON returns the source bytes when available.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	if d.raw != nil {
		return d.raw, nil
	}
	return json.Marshal(d.fields)
}

// UnmarshalJSON decodes an object body.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := parseDocument(data)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}
