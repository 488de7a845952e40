// Package main is the runlog command.
//
// runlog indexes a set of run files and prints what they contain: the runs
// selected by a query, a summary of one run, its events, or the whole run
// as canonical [kind, body] lines. Options come from an optional YAML file
// and from flags, flags taking precedence.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/jpl-au/runlog"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const usage = `usage: runlog [flags] <command> [uid]

commands:
  list          one line per run: uid, plan, scan id, exit status
  show <uid>    run summary, streams and partition count
  events <uid>  events of the run as JSON lines; with -stream, filled
                events of that stream, or its column table with -columns
  docs <uid>    every document of the run as [kind, body] lines

flags:
`

func main() {
	if err := mainImpl(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "runlog: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runlog", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "YAML configuration file")
	files := fs.String("files", "", "Comma-separated glob patterns of run files")
	query := fs.String("query", "", "Run filter as a JSON object, e.g. '{\"plan_name\": \"count\"}'")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	hash := fs.String("hash", "", "Start document fingerprint (xxh3, fnv1a, blake2b)")
	partitionSize := fs.Int("partition-size", 0, "Documents per partition")
	stream := fs.String("stream", "", "Stream name for events (default: all streams)")
	skip := fs.Int("skip", 0, "Events to skip")
	limit := fs.Int("limit", 0, "Maximum events to print (0 for all)")
	columns := fs.Bool("columns", false, "Print the -stream events as one JSON object of columns")
	include := fs.String("include", "", "Comma-separated fields for -columns (default: all)")
	exclude := fs.String("exclude", "", "Comma-separated fields to leave out of -columns")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *files != "" {
		cfg.Files = strings.Split(*files, ",")
	}
	if *query != "" {
		var f runlog.Filter
		if err := json.Unmarshal([]byte(*query), &f); err != nil {
			return fmt.Errorf("bad -query: %w", err)
		}
		cfg.Query = f
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *hash != "" {
		cfg.Hash = *hash
	}
	if *partitionSize != 0 {
		cfg.PartitionSize = *partitionSize
	}

	logger := initLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	cmd, rest := rest[0], rest[1:]
	switch cmd {
	case "list", "show", "events", "docs":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	if *columns && *stream == "" {
		return errors.New("-columns needs -stream")
	}

	paths, err := cfg.files()
	if err != nil {
		return err
	}
	config, err := cfg.catalogConfig(logger)
	if err != nil {
		return err
	}
	catalog, err := runlog.Open(paths, config)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	if err := dispatch(w, catalog, cmd, rest, eventOptions{
		stream:  *stream,
		page:    runlog.Page{Skip: *skip, Limit: *limit},
		columns: *columns,
		include: splitList(*include),
		exclude: splitList(*exclude),
	}); err != nil {
		return err
	}
	return w.Flush()
}

func dispatch(w io.Writer, catalog *runlog.Catalog, cmd string, rest []string, opts eventOptions) error {
	if cmd == "list" {
		if len(rest) != 0 {
			return fmt.Errorf("list: unexpected arguments %v", rest)
		}
		return list(w, catalog)
	}

	if len(rest) != 1 {
		return fmt.Errorf("%s: want exactly one run uid", cmd)
	}
	entry, err := catalog.Entries().Get(rest[0])
	if err != nil {
		return err
	}
	switch cmd {
	case "show":
		return show(w, entry)
	case "events":
		return events(w, entry, opts)
	default:
		return docs(w, entry)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// initLogger writes colourised logs to stderr when it is a terminal.
func initLogger(level string) *slog.Logger {
	ll := &slog.LevelVar{}
	ll.Set(parseLevel(level))
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

func list(w io.Writer, c *runlog.Catalog) error {
	for uid, entry := range c.Entries().Items() {
		start := entry.RunStart()
		exit := "-"
		stop, err := entry.RunStop()
		if err != nil {
			return err
		}
		if stop != nil {
			exit = stop.String("exit_status")
		}
		scan := "-"
		if v := start.Get("scan_id"); v != nil {
			scan = fmt.Sprint(v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", uid, start.String("plan_name"), scan, exit)
	}
	return nil
}

func show(w io.Writer, e *runlog.Entry) error {
	fmt.Fprintln(w, e.String())
	fmt.Fprintf(w, "  source=%s\n", e.Source)
	fmt.Fprintf(w, "  fingerprint=%s\n", e.Fingerprint)

	streams, err := e.Streams()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  streams=%s\n", strings.Join(streams, ","))

	n, err := e.Partitions()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  partitions=%d\n", n)
	return nil
}

type eventOptions struct {
	stream  string
	page    runlog.Page
	columns bool
	include []string
	exclude []string
}

// events prints the run's events. Without a stream it prints every event as
// stored. With one it prints that stream's filled events, or its column
// table.
func events(w io.Writer, e *runlog.Entry, opts eventOptions) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if opts.stream == "" {
		descriptors, err := e.EventDescriptors()
		if err != nil {
			return err
		}
		uids := make([]string, len(descriptors))
		for i, d := range descriptors {
			uids[i] = d.String("uid")
		}
		return encodeAll(enc, e.EventCursor(uids, opts.page))
	}

	s, err := e.Stream(opts.stream)
	if err != nil {
		return err
	}
	if !opts.columns {
		return encodeAll(enc, s.Events(opts.page))
	}
	cols, err := s.Columns(opts.include, opts.exclude)
	if err != nil {
		return err
	}
	return enc.Encode(cols)
}

func encodeAll(enc *json.Encoder, seq iter.Seq2[*runlog.Document, error]) error {
	for ev, err := range seq {
		if err != nil {
			return err
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

// docs prints the run in canonical order, one [kind, body] line per
// document.
func docs(w io.Writer, e *runlog.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for rec, err := range e.Canonical() {
		if err != nil {
			return err
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
