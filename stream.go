// Event streams.
//
// A stream is the set of a run's descriptors that share a name, such as
// "primary" or "baseline", together with the events that reference them.
// Descriptors are read once when the stream is selected. Events are streamed
// from the file on every call and passed through the entry's Filler.
package runlog

import (
	"fmt"
	"iter"
	"slices"
)

// Stream is one named event stream of a run.
type Stream struct {
	Name string

	entry       *Entry
	descriptors []*Document
	uids        []string
}

// Stream selects the descriptors of the run named name. A name no descriptor
// carries returns ErrNotFound.
func (e *Entry) Stream(name string) (*Stream, error) {
	descriptors, err := e.EventDescriptors()
	if err != nil {
		return nil, err
	}
	s := &Stream{Name: name, entry: e}
	for _, d := range descriptors {
		if d.String("name") == name {
			s.descriptors = append(s.descriptors, d)
			s.uids = append(s.uids, d.String("uid"))
		}
	}
	if s.descriptors == nil {
		return nil, fmt.Errorf("stream %q in run %s: %w", name, e.UID, ErrNotFound)
	}
	return s, nil
}

// Descriptors returns the stream's descriptors in file order.
func (s *Stream) Descriptors() []*Document {
	return s.descriptors
}

// Count returns the number of events in the stream.
func (s *Stream) Count() (int, error) {
	return s.entry.EventCount(s.uids)
}

// Events yields the stream's events in file order, each filled before it is
// yielded.
func (s *Stream) Events(page Page) iter.Seq2[*Document, error] {
	return s.events(page, true)
}

func (s *Stream) events(page Page, fill bool) iter.Seq2[*Document, error] {
	return func(yield func(*Document, error) bool) {
		for ev, err := range s.entry.EventCursor(s.uids, page) {
			if err == nil && fill {
				err = s.entry.fill(ev)
			}
			if !yield(ev, err) || err != nil {
				return
			}
		}
	}
}

// Fields returns the data keys of the stream, sorted. They are taken from
// the first descriptor, as every descriptor of a stream carries the same
// keys.
func (s *Stream) Fields() []string {
	keys := dataKeys(s.descriptors[0])
	fields := make([]string, 0, len(keys))
	for k := range keys {
		fields = append(fields, k)
	}
	slices.Sort(fields)
	return fields
}

// Columns transposes the stream's event data into one column per field, in
// event order. include keeps only the named fields and exclude drops them;
// setting both returns ErrInvalidSelection. Names that are not data keys of
// the stream are ignored. An event without a value for a field has nil in
// that row.
//
// Events are filled first when any selected field is external.
func (s *Stream) Columns(include, exclude []string) (map[string][]any, error) {
	if len(include) > 0 && len(exclude) > 0 {
		return nil, fmt.Errorf("%w: include and exclude are mutually exclusive", ErrInvalidSelection)
	}

	keys := dataKeys(s.descriptors[0])
	var fields []string
	for _, k := range s.Fields() {
		switch {
		case len(include) > 0 && !slices.Contains(include, k):
		case slices.Contains(exclude, k):
		default:
			fields = append(fields, k)
		}
	}

	fill := false
	for _, k := range fields {
		if meta, ok := keys[k].(map[string]any); ok && external(meta["external"]) {
			fill = true
			break
		}
	}

	columns := make(map[string][]any, len(fields))
	for _, k := range fields {
		columns[k] = []any{}
	}
	for ev, err := range s.events(Page{}, fill) {
		if err != nil {
			return nil, err
		}
		data, _ := ev.Get("data").(map[string]any)
		for _, k := range fields {
			columns[k] = append(columns[k], data[k])
		}
	}
	return columns, nil
}

func dataKeys(descriptor *Document) map[string]any {
	keys, _ := descriptor.Get("data_keys").(map[string]any)
	return keys
}

// external reports whether a data key's "external" marker is set: any value
// other than null, false or an empty string.
func external(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	return true
}
