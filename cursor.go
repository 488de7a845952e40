// Per-run document access.
//
// Every accessor re-opens the run's file and walks it from the first line;
// nothing is cached between calls. Scans that filter on a reference field
// (event.descriptor, datum.resource, resource.uid, datum.datum_id) decode
// only that field first and build the full document only for lines that are
// returned, so skipping past thousands of events costs little more than
// reading them.
//
// Cursors are iter.Seq2 sequences: lazy, finite and single use. The file is
// opened when iteration starts and closed when it ends, including when the
// caller breaks out of the range loop early.
package runlog

import (
	"errors"
	"fmt"
	"io"
	"iter"
)

// Page selects a window of a cursor's matches. Skip and Limit count matching
// documents, not lines.
type Page struct {
	Skip  int // Matches to discard before yielding
	Limit int // Maximum matches to yield; 0 means no limit
}

func (p Page) validate() error {
	if p.Skip < 0 || p.Limit < 0 {
		return fmt.Errorf("%w: skip=%d limit=%d", ErrInvalidPage, p.Skip, p.Limit)
	}
	return nil
}

// RunStart returns the start document of a run. The document is shared with
// the index and must not be modified.
func (c *Catalog) RunStart(uid string) (*Document, error) {
	r, err := c.index.get(uid)
	if err != nil {
		return nil, err
	}
	return r.start, nil
}

// RunStop returns the stop document of a run, or nil if the run has none
// (still in progress, or truncated). Only the last line is parsed.
func (c *Catalog) RunStop(uid string) (*Document, error) {
	r, err := c.index.get(uid)
	if err != nil {
		return nil, err
	}

	kind, body, err := last(r.path, c.config)
	if err != nil {
		return nil, err
	}
	if kind != KindStop {
		return nil, nil
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("%s: last line: %w", r.path, err)
	}
	return doc, nil
}

// EventDescriptors returns every descriptor of a run in file order.
func (c *Catalog) EventDescriptors(uid string) ([]*Document, error) {
	var descriptors []*Document
	err := c.each(uid, func(rd *reader, kind Kind, body []byte) (bool, error) {
		if kind != KindDescriptor {
			return true, nil
		}
		doc, err := parseDocument(body)
		if err != nil {
			return false, rd.wrap(err)
		}
		descriptors = append(descriptors, doc)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return descriptors, nil
}

// EventCursor yields the events of a run that reference one of
// descriptorUIDs, windowed by page.
func (c *Catalog) EventCursor(uid string, descriptorUIDs []string, page Page) iter.Seq2[*Document, error] {
	set := toSet(descriptorUIDs)
	return c.cursor(uid, KindEvent, func(r ref) bool {
		_, ok := set[r.Descriptor]
		return ok
	}, page)
}

// EventCount counts the events of a run that reference one of
// descriptorUIDs. It always reads the whole file.
func (c *Catalog) EventCount(uid string, descriptorUIDs []string) (int, error) {
	set := toSet(descriptorUIDs)
	n := 0
	err := c.each(uid, func(rd *reader, kind Kind, body []byte) (bool, error) {
		if kind != KindEvent {
			return true, nil
		}
		r, err := peek(body)
		if err != nil {
			return false, rd.wrap(err)
		}
		if _, ok := set[r.Descriptor]; ok {
			n++
		}
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Resource returns the first resource of a run with the given uid.
func (c *Catalog) Resource(uid, resourceUID string) (*Document, error) {
	doc, err := c.find(uid, KindResource, func(r ref) bool { return r.UID == resourceUID })
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("resource %s: %w", resourceUID, err)
	}
	return doc, err
}

// Datum returns the first datum of a run with the given datum_id.
func (c *Catalog) Datum(uid, datumID string) (*Document, error) {
	doc, err := c.find(uid, KindDatum, func(r ref) bool { return r.DatumID == datumID })
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("datum %s: %w", datumID, err)
	}
	return doc, err
}

// DatumCursor yields the datums of a run that belong to resourceUID,
// windowed by page.
func (c *Catalog) DatumCursor(uid, resourceUID string, page Page) iter.Seq2[*Document, error] {
	return c.cursor(uid, KindDatum, func(r ref) bool { return r.Resource == resourceUID }, page)
}

// each walks a run's file, calling fn for every line until fn returns false
// or an error.
func (c *Catalog) each(uid string, fn func(rd *reader, kind Kind, body []byte) (bool, error)) error {
	r, err := c.index.get(uid)
	if err != nil {
		return err
	}
	rd, err := newReader(r.path, c.config)
	if err != nil {
		return err
	}
	defer rd.Close()

	for {
		kind, body, err := rd.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		more, err := fn(rd, kind, body)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// find returns the first document of kind whose reference fields satisfy
// keep, or ErrNotFound.
func (c *Catalog) find(uid string, kind Kind, keep func(ref) bool) (*Document, error) {
	var found *Document
	err := c.each(uid, func(rd *reader, k Kind, body []byte) (bool, error) {
		if k != kind {
			return true, nil
		}
		r, err := peek(body)
		if err != nil {
			return false, rd.wrap(err)
		}
		if !keep(r) {
			return true, nil
		}
		found, err = parseDocument(body)
		if err != nil {
			return false, rd.wrap(err)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// cursor yields documents of kind whose reference fields satisfy keep,
// skipping the first page.Skip matches and stopping after page.Limit. The
// file is not read past the last yielded document.
func (c *Catalog) cursor(uid string, kind Kind, keep func(ref) bool, page Page) iter.Seq2[*Document, error] {
	return func(yield func(*Document, error) bool) {
		if err := page.validate(); err != nil {
			yield(nil, err)
			return
		}
		r, err := c.index.get(uid)
		if err != nil {
			yield(nil, err)
			return
		}
		rd, err := newReader(r.path, c.config)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rd.Close()

		matched, yielded := 0, 0
		for page.Limit == 0 || yielded < page.Limit {
			k, body, err := rd.next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if k != kind {
				continue
			}
			refs, err := peek(body)
			if err != nil {
				yield(nil, rd.wrap(err))
				return
			}
			if !keep(refs) {
				continue
			}
			matched++
			if matched <= page.Skip {
				continue
			}
			doc, err := parseDocument(body)
			if err != nil {
				yield(nil, rd.wrap(err))
				return
			}
			yielded++
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
