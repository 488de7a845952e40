// Hook for the external document filler.
//
// Filling resolves the datum references inside events into the external data
// they point at. That work belongs to a separate component; the catalog only
// carries a handle to it, built from the handler registry, and feeds it the
// documents it asks for.
package runlog

import "fmt"

// Filler consumes run documents. Fill may modify an event in place (via
// Document.Set) to replace datum references with loaded data.
type Filler interface {
	Fill(kind Kind, doc *Document) error
}

// FillerFunc adapts a function to the Filler interface.
type FillerFunc func(kind Kind, doc *Document) error

// Fill calls f.
func (f FillerFunc) Fill(kind Kind, doc *Document) error {
	return f(kind, doc)
}

// UnresolvedError is returned by a Filler when an event references a datum
// it has not been given yet. The partition reader responds by fetching that
// datum, its resource and the resource's other datums, then filling the
// event again.
type UnresolvedError struct {
	Key string // datum_id
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved datum %s", e.Key)
}

// nopFiller is used when Config.NewFiller is nil.
type nopFiller struct{}

func (nopFiller) Fill(Kind, *Document) error { return nil }
