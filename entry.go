// Per-run entries.
//
// An Entry bundles a run's identity with accessor functions bound to its
// uid. The accessors are plain function fields so a host that wraps entries
// can pass them on individually, or substitute its own.
package runlog

import (
	"fmt"
	"iter"
	"strings"
	"time"
)

// Metadata is the bracketing documents of a run.
type Metadata struct {
	Start *Document
	Stop  *Document // nil for a run without a stop document
}

// Entry is one run of a catalog. An Entry caches its metadata and partition
// layout after first use and is not safe for concurrent use.
type Entry struct {
	UID         string
	Source      string // path of the run file
	Fingerprint string // hash of the raw start document
	Filler      Filler // shared with the catalog

	RunStart         func() *Document
	RunStop          func() (*Document, error)
	EventDescriptors func() ([]*Document, error)
	EventCursor      func(descriptorUIDs []string, page Page) iter.Seq2[*Document, error]
	EventCount       func(descriptorUIDs []string) (int, error)
	Resource         func(resourceUID string) (*Document, error)
	Datum            func(datumID string) (*Document, error)
	DatumCursor      func(resourceUID string, page Page) iter.Seq2[*Document, error]

	partitionSize int
	meta          *Metadata
	layout        *layout
}

// entry binds the catalog's accessors to one run.
func (c *Catalog) entry(r *run) *Entry {
	uid := r.uid
	return &Entry{
		UID:         uid,
		Source:      r.path,
		Fingerprint: r.fingerprint,
		Filler:      c.filler,

		RunStart: func() *Document { return r.start },
		RunStop:  func() (*Document, error) { return c.RunStop(uid) },
		EventDescriptors: func() ([]*Document, error) {
			return c.EventDescriptors(uid)
		},
		EventCursor: func(descriptorUIDs []string, page Page) iter.Seq2[*Document, error] {
			return c.EventCursor(uid, descriptorUIDs, page)
		},
		EventCount: func(descriptorUIDs []string) (int, error) {
			return c.EventCount(uid, descriptorUIDs)
		},
		Resource: func(resourceUID string) (*Document, error) {
			return c.Resource(uid, resourceUID)
		},
		Datum: func(datumID string) (*Document, error) {
			return c.Datum(uid, datumID)
		},
		DatumCursor: func(resourceUID string, page Page) iter.Seq2[*Document, error] {
			return c.DatumCursor(uid, resourceUID, page)
		},

		partitionSize: c.config.PartitionSize,
	}
}

// Metadata returns the run's start and stop documents. The stop document is
// read on the first call only.
func (e *Entry) Metadata() (Metadata, error) {
	if e.meta == nil {
		stop, err := e.RunStop()
		if err != nil {
			return Metadata{}, err
		}
		e.meta = &Metadata{Start: e.RunStart(), Stop: stop}
	}
	return *e.meta, nil
}

// Streams returns the distinct descriptor names of the run in order of first
// appearance. Descriptors without a name are ignored.
func (e *Entry) Streams() ([]string, error) {
	descriptors, err := e.EventDescriptors()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, d := range descriptors {
		name := d.String("name")
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// String summarises the run: uid, exit status and time span.
func (e *Entry) String() string {
	meta, err := e.Metadata()
	if err != nil {
		return fmt.Sprintf("Run %s: %v", e.UID, err)
	}

	exit, end := "?", "?"
	if meta.Stop != nil {
		if s := meta.Stop.String("exit_status"); s != "" {
			exit = s
		}
		end = timestamp(meta.Stop.Get("time"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", e.UID)
	fmt.Fprintf(&b, "  exit_status=%s\n", exit)
	fmt.Fprintf(&b, "  %s -- %s", timestamp(meta.Start.Get("time")), end)
	return b.String()
}

// timestamp formats a document time: strings as-is, epoch seconds in local
// time to the millisecond.
func timestamp(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "?"
	}
	secs, ok := number(v)
	if !ok {
		return fmt.Sprint(v)
	}
	return time.UnixMilli(int64(secs * 1000)).Format("2006-01-02 15:04:05.000")
}
