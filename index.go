// Run index construction.
//
// The index maps run uids to their source file and start document. It is
// built by reading exactly one line from each candidate file, in input
// order, and never updated afterwards.
package runlog

import (
	"errors"
	"fmt"
	"io"
)

// run is one indexed run.
type run struct {
	uid         string
	path        string
	start       *Document
	fingerprint string // hash of the raw start document
}

// index holds runs in registration order.
type index struct {
	order []string
	runs  map[string]*run
}

// buildIndex reads the first line of every file. A file that does not start
// with a start document means the file list itself is wrong, so the whole
// build fails rather than skipping it.
//
// When two files declare the same uid the later file wins, while the uid
// keeps the position of its first registration.
func buildIndex(files []string, query *Query, config Config) (*index, error) {
	idx := &index{runs: make(map[string]*run, len(files))}

	for _, path := range files {
		kind, body, err := first(path, config)
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: empty file", ErrInvalidRunFile, path)
		}
		if err != nil {
			return nil, err
		}
		if kind != KindStart {
			return nil, fmt.Errorf("%w: %s: first document is %q, want %q", ErrInvalidRunFile, path, kind, KindStart)
		}

		start, err := parseDocument(body)
		if err != nil {
			return nil, fmt.Errorf("%s:1: %w", path, err)
		}
		uid := start.String("uid")
		if uid == "" {
			return nil, fmt.Errorf("%w: %s: start document has no uid", ErrInvalidRunFile, path)
		}

		if !query.Match(start.fields) {
			config.Logger.Debug("run excluded", "uid", uid, "path", path)
			continue
		}

		r := &run{
			uid:         uid,
			path:        path,
			start:       start,
			fingerprint: fingerprint(body, config.HashAlgorithm),
		}

		if prev, ok := idx.runs[uid]; ok {
			if config.RejectDuplicates {
				return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateRun, uid, prev.path, path)
			}
			config.Logger.Warn("duplicate run uid",
				"uid", uid,
				"path", path,
				"previous", prev.path,
				"identical", prev.fingerprint == r.fingerprint)
		} else {
			idx.order = append(idx.order, uid)
		}
		idx.runs[uid] = r
		config.Logger.Debug("run indexed", "uid", uid, "path", path)
	}

	return idx, nil
}

// get returns the run for uid.
func (idx *index) get(uid string) (*run, error) {
	r, ok := idx.runs[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, uid)
	}
	return r, nil
}
