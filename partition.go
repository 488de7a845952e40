// Partitioned and canonical reads of a whole run.
//
// A run is addressed as one sequence of documents: the start document, every
// descriptor, every event, then the stop document if there is one. The
// sequence is cut into partitions of Config.PartitionSize documents so a
// consumer can fetch a large run piecewise. Descriptors are held in memory
// once loaded; events are always streamed from the file through the event
// cursor, using skip and limit to land on the partition.
package runlog

import (
	"errors"
	"fmt"
	"iter"
)

// layout is the partition plan of a run, computed once per Entry.
type layout struct {
	start       *Document
	stop        *Document
	descriptors []*Document
	uids        []string // descriptor uids
	events      int
	partitions  int
}

func (e *Entry) load() (*layout, error) {
	if e.layout != nil {
		return e.layout, nil
	}

	meta, err := e.Metadata()
	if err != nil {
		return nil, err
	}
	descriptors, err := e.EventDescriptors()
	if err != nil {
		return nil, err
	}
	uids := make([]string, len(descriptors))
	for i, d := range descriptors {
		uids[i] = d.String("uid")
	}
	events, err := e.EventCount(uids)
	if err != nil {
		return nil, err
	}

	count := 1 + len(descriptors) + events
	if meta.Stop != nil {
		count++
	}

	e.layout = &layout{
		start:       meta.Start,
		stop:        meta.Stop,
		descriptors: descriptors,
		uids:        uids,
		events:      events,
		partitions:  (count + e.partitionSize - 1) / e.partitionSize,
	}
	return e.layout, nil
}

// Partitions returns the number of partitions in the run.
func (e *Entry) Partitions() (int, error) {
	l, err := e.load()
	if err != nil {
		return 0, err
	}
	return l.partitions, nil
}

// ReadPartition returns partition i of the run. Events are passed through
// the entry's Filler before they are returned.
func (e *Entry) ReadPartition(i int) ([]Record, error) {
	l, err := e.load()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= l.partitions {
		return nil, fmt.Errorf("%w: %d of %d", ErrPartitionRange, i, l.partitions)
	}

	lo, hi := i*e.partitionSize, (i+1)*e.partitionSize
	header := 1 + len(l.descriptors)

	var out []Record
	for j := lo; j < min(hi, header); j++ {
		if j == 0 {
			out = append(out, Record{Kind: KindStart, Doc: l.start})
		} else {
			out = append(out, Record{Kind: KindDescriptor, Doc: l.descriptors[j-1]})
		}
	}

	skip := max(0, lo-header)
	limit := hi - lo - len(out)
	if limit > 0 && skip < l.events {
		for ev, err := range e.EventCursor(l.uids, Page{Skip: skip, Limit: limit}) {
			if err != nil {
				return nil, err
			}
			if err := e.fill(ev); err != nil {
				return nil, err
			}
			out = append(out, Record{Kind: KindEvent, Doc: ev})
		}
	}

	if i == l.partitions-1 && l.stop != nil {
		out = append(out, Record{Kind: KindStop, Doc: l.stop})
	}
	return out, nil
}

// Canonical yields the whole run in document order, one partition at a time.
func (e *Entry) Canonical() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		n, err := e.Partitions()
		if err != nil {
			yield(Record{}, err)
			return
		}
		for i := range n {
			records, err := e.ReadPartition(i)
			if err != nil {
				yield(Record{}, err)
				return
			}
			for _, r := range records {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

// fill passes an event to the filler. If the filler reports an unresolved
// datum, the datum, its resource and every datum of that resource are
// fetched and filled first, then the event is filled once more.
func (e *Entry) fill(event *Document) error {
	err := e.Filler.Fill(KindEvent, event)
	var unresolved *UnresolvedError
	if !errors.As(err, &unresolved) {
		return err
	}

	datum, err := e.Datum(unresolved.Key)
	if err != nil {
		return err
	}
	resourceUID := datum.String("resource")
	resource, err := e.Resource(resourceUID)
	if err != nil {
		return err
	}
	if err := e.Filler.Fill(KindResource, resource); err != nil {
		return err
	}
	for d, err := range e.DatumCursor(resourceUID, Page{}) {
		if err != nil {
			return err
		}
		if err := e.Filler.Fill(KindDatum, d); err != nil {
			return err
		}
	}
	return e.Filler.Fill(KindEvent, event)
}
