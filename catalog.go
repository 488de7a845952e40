// Catalog type and construction.
//
// A Catalog is built once from an ordered list of run files and never
// changes afterwards. Construction reads the first line of every file;
// everything else is read on demand by the accessors in cursor.go.
package runlog

import (
	"log/slog"
	"maps"
	"slices"
)

// DefaultPartitionSize is the number of documents per partition.
const DefaultPartitionSize = 100

// Config holds catalog configuration options.
type Config struct {
	Query            Filter            // Run selection over start documents (nil matches all)
	Handlers         map[string]string // Asset spec -> loader reference, passed to NewFiller unmodified
	NewFiller        func(handlers map[string]string) (Filler, error)
	HashAlgorithm    int  // 1=xxHash3, 2=FNV1a, 3=Blake2b
	ReadBuffer       int  // Initial line buffer size (default 64KB)
	MaxRecordSize    int  // Maximum single line size (default 16MB)
	PartitionSize    int  // Documents per partition (default 100)
	RejectDuplicates bool // Fail construction when two files declare the same uid
	Logger           *slog.Logger
}

// Catalog is a read-only, queryable collection of runs.
//
// A Catalog is immutable once built, so its accessors may be called from
// several goroutines. Cursors and Entries returned by it may not be shared.
type Catalog struct {
	config Config
	query  *Query
	files  []string
	index  *index
	filler Filler
	log    *slog.Logger
}

// Open indexes files and returns a catalog of the runs whose start documents
// match config.Query. Any file whose first line is not a start document
// aborts construction with ErrInvalidRunFile.
func Open(files []string, config Config) (*Catalog, error) {
	if config.HashAlgorithm == 0 {
		config.HashAlgorithm = AlgXXHash3
	}
	if config.ReadBuffer == 0 {
		config.ReadBuffer = 64 * 1024
	}
	if config.MaxRecordSize == 0 {
		config.MaxRecordSize = 16 * 1024 * 1024
	}
	if config.PartitionSize <= 0 {
		config.PartitionSize = DefaultPartitionSize
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	config.Handlers = maps.Clone(config.Handlers)

	var filler Filler = nopFiller{}
	if config.NewFiller != nil {
		f, err := config.NewFiller(maps.Clone(config.Handlers))
		if err != nil {
			return nil, err
		}
		filler = f
	}

	return build(files, config, filler)
}

// build compiles the query and indexes files. Search reuses it so that a
// sub-catalog shares its parent's filler.
func build(files []string, config Config, filler Filler) (*Catalog, error) {
	query, err := Compile(config.Query)
	if err != nil {
		return nil, err
	}

	idx, err := buildIndex(files, query, config)
	if err != nil {
		return nil, err
	}

	config.Logger.Info("catalog built", "files", len(files), "runs", len(idx.order))

	return &Catalog{
		config: config,
		query:  query,
		files:  slices.Clone(files),
		index:  idx,
		filler: filler,
		log:    config.Logger,
	}, nil
}

// Search returns a new catalog over the same file list, restricted to runs
// matching both this catalog's filter and filter. Filters compose with $and,
// so a search can only narrow: c.Search(f1).Search(f2) selects the same runs
// as a catalog opened with {$and: [f1, f2]}, duplicate uids included.
func (c *Catalog) Search(filter Filter) (*Catalog, error) {
	config := c.config
	config.Query = and(c.config.Query, filter)
	c.log.Debug("search", "filter", config.Query)
	return build(c.files, config, c.filler)
}

// Len returns the number of runs in the catalog.
func (c *Catalog) Len() int {
	return len(c.index.order)
}

// Filter returns the filter runs were selected with.
func (c *Catalog) Filter() Filter {
	return c.query.Filter()
}

// Files returns the file list the catalog was built from.
func (c *Catalog) Files() []string {
	return slices.Clone(c.files)
}

// Handlers returns the handler registry given to the filler.
func (c *Catalog) Handlers() map[string]string {
	return maps.Clone(c.config.Handlers)
}

// Filler returns the document filler shared by every entry.
func (c *Catalog) Filler() Filler {
	return c.filler
}
