// Package runlog provides a read-only catalog over run files: newline-
// delimited JSON files in which every line is a [kind, body] pair and each
// file records one data-acquisition run as a chronological document stream
// (start, descriptor, event, resource, datum, stop).
//
// A Catalog is built once from a list of files. Construction reads only the
// first line of each file, so the index holds the run's start document and
// source path and nothing else. Every other accessor (stop document,
// descriptors, paginated event and datum cursors, single-document lookups)
// re-scans the run's file line by line. Nothing is cached between calls and
// no file is ever loaded into memory in full, which keeps the catalog cheap
// to build and free of invalidation concerns for static files.
//
// Runs are selected with a MongoDB-style filter evaluated against their
// start documents. Search derives a narrower catalog by combining filters
// with $and, so a sub-catalog can never see more runs than its parent.
package runlog

import "errors"

// Sentinel errors for programmatic handling. Callers can use errors.Is to
// distinguish absence (ErrNotFound, ErrUnknownRun) from corruption
// (ErrMalformedDocument, ErrInvalidRunFile).
var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrInvalidRunFile    = errors.New("invalid run file")
	ErrNotFound          = errors.New("document not found")
	ErrUnknownRun        = errors.New("unknown run")
	ErrNotImplemented    = errors.New("not implemented")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrInvalidPage       = errors.New("invalid page")
	ErrDuplicateRun      = errors.New("duplicate run uid")
	ErrPartitionRange    = errors.New("partition out of range")
	ErrInvalidSelection  = errors.New("invalid field selection")
)
