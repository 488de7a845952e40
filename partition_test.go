package runlog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"
)

// canonicalIDs is the document order of sampleRun("run") as read back.
var canonicalIDs = []string{"start:run", "descriptor:d1", "descriptor:d2", "event:e1", "event:b1", "event:e2", "event:e3", "stop:s1"}

func recordID(r Record) string {
	return string(r.Kind) + ":" + r.Doc.String("uid")
}

func sampleEntry(t *testing.T, config Config) *Entry {
	t.Helper()
	dir := t.TempDir()
	c := openTestCatalog(t, []string{writeRun(t, dir, "run.jsonl", sampleRun("run")...)}, config)
	entry, err := c.Entries().Get("run")
	if err != nil {
		t.Fatal(err)
	}
	return entry
}

func TestEntryMetadata(t *testing.T) {
	entry := sampleEntry(t, Config{})
	meta, err := entry.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Start.String("uid") != "run" {
		t.Errorf("Start uid = %q", meta.Start.String("uid"))
	}
	if meta.Stop == nil || meta.Stop.String("exit_status") != "success" {
		t.Errorf("Stop = %v", meta.Stop)
	}
}

func TestEntryStreams(t *testing.T) {
	dir := t.TempDir()
	path := writeRun(t, dir, "s.jsonl",
		startLine("s", ""),
		docLine(KindDescriptor, `{"uid": "d1", "name": "primary"}`),
		docLine(KindDescriptor, `{"uid": "d2", "name": "baseline"}`),
		docLine(KindDescriptor, `{"uid": "d3", "name": "primary"}`),
		docLine(KindDescriptor, `{"uid": "d4"}`),
	)
	entry, err := openTestCatalog(t, []string{path}, Config{}).Entries().Get("s")
	if err != nil {
		t.Fatal(err)
	}
	streams, err := entry.Streams()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"primary", "baseline"}; !slices.Equal(streams, want) {
		t.Errorf("Streams = %v, want %v", streams, want)
	}
}

func TestEntryString(t *testing.T) {
	layout := "2006-01-02 15:04:05.000"
	start := time.Unix(1700000000, 0).Format(layout)
	end := time.Unix(1700000100, 0).Format(layout)

	entry := sampleEntry(t, Config{})
	want := fmt.Sprintf("Run run\n  exit_status=success\n  %s -- %s", start, end)
	if got := entry.String(); got != want {
		t.Errorf("String =\n%s\nwant\n%s", got, want)
	}

	dir := t.TempDir()
	running, err := openTestCatalog(t, []string{writeRun(t, dir, "o.jsonl", startLine("o", ""))}, Config{}).Entries().Get("o")
	if err != nil {
		t.Fatal(err)
	}
	want = fmt.Sprintf("Run o\n  exit_status=?\n  %s -- ?", start)
	if got := running.String(); got != want {
		t.Errorf("String without stop =\n%s\nwant\n%s", got, want)
	}
}

func TestTimestamp(t *testing.T) {
	if got := timestamp("2024-01-01T00:00:00"); got != "2024-01-01T00:00:00" {
		t.Errorf("string time = %q", got)
	}
	if got := timestamp(nil); got != "?" {
		t.Errorf("nil time = %q", got)
	}
	want := time.UnixMilli(1700000000250).Format("2006-01-02 15:04:05.000")
	if got := timestamp(1700000000.25); got != want {
		t.Errorf("float time = %q, want %q", got, want)
	}
}

// TestPartitionsConcatenate verifies that for every partition size the
// partitions, read in order, reproduce the canonical document sequence.
func TestPartitionsConcatenate(t *testing.T) {
	for size := 1; size <= len(canonicalIDs)+2; size++ {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			entry := sampleEntry(t, Config{PartitionSize: size})

			n, err := entry.Partitions()
			if err != nil {
				t.Fatal(err)
			}
			if want := (len(canonicalIDs) + size - 1) / size; n != want {
				t.Errorf("Partitions = %d, want %d", n, want)
			}

			var got []string
			for i := range n {
				records, err := entry.ReadPartition(i)
				if err != nil {
					t.Fatalf("ReadPartition(%d): %v", i, err)
				}
				if len(records) > size {
					t.Errorf("partition %d has %d records, size %d", i, len(records), size)
				}
				for _, r := range records {
					got = append(got, recordID(r))
				}
			}
			if !slices.Equal(got, canonicalIDs) {
				t.Errorf("partitions = %v\nwant %v", got, canonicalIDs)
			}
		})
	}
}

func TestPartitionsWithoutStop(t *testing.T) {
	dir := t.TempDir()
	path := writeRun(t, dir, "o.jsonl",
		startLine("o", ""),
		docLine(KindDescriptor, `{"uid": "d1"}`),
		docLine(KindEvent, `{"uid": "e1", "descriptor": "d1"}`),
		docLine(KindEvent, `{"uid": "e2", "descriptor": "d1"}`),
	)
	entry, err := openTestCatalog(t, []string{path}, Config{PartitionSize: 2}).Entries().Get("o")
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for r, err := range entry.Canonical() {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, recordID(r))
	}
	if want := []string{"start:o", "descriptor:d1", "event:e1", "event:e2"}; !slices.Equal(got, want) {
		t.Errorf("Canonical = %v, want %v", got, want)
	}
	if n, _ := entry.Partitions(); n != 2 {
		t.Errorf("Partitions = %d, want 2", n)
	}
}

func TestReadPartitionRange(t *testing.T) {
	entry := sampleEntry(t, Config{PartitionSize: 3})
	for _, i := range []int{-1, 3, 100} {
		if _, err := entry.ReadPartition(i); !errors.Is(err, ErrPartitionRange) {
			t.Errorf("ReadPartition(%d) error = %v, want ErrPartitionRange", i, err)
		}
	}
}

func TestCanonicalEarlyBreak(t *testing.T) {
	entry := sampleEntry(t, Config{PartitionSize: 2})
	var got []string
	for r, err := range entry.Canonical() {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, recordID(r))
		if len(got) == 3 {
			break
		}
	}
	if !slices.Equal(got, canonicalIDs[:3]) {
		t.Errorf("got %v", got)
	}
}

// loadingFiller resolves datum references in event data once it has been
// given the datum, and records every call.
type loadingFiller struct {
	calls []string
	have  map[string]bool
}

func (f *loadingFiller) Fill(kind Kind, doc *Document) error {
	id := doc.String("uid")
	if kind == KindDatum {
		id = doc.String("datum_id")
		f.have[id] = true
	}
	f.calls = append(f.calls, string(kind)+":"+id)

	if kind != KindEvent {
		return nil
	}
	data, _ := doc.Get("data").(map[string]any)
	key, ok := data["det"].(string)
	if !ok {
		return nil
	}
	if !f.have[key] {
		return &UnresolvedError{Key: key}
	}
	data["det"] = "loaded " + key
	doc.Set("data", data)
	return nil
}

func TestReadPartitionFills(t *testing.T) {
	filler := &loadingFiller{have: make(map[string]bool)}
	entry := sampleEntry(t, Config{
		NewFiller: func(map[string]string) (Filler, error) { return filler, nil },
	})

	records, err := entry.ReadPartition(0)
	if err != nil {
		t.Fatalf("ReadPartition: %v", err)
	}

	wantCalls := []string{
		"event:e1",
		"resource:r1",
		"datum:r1/0", "datum:r1/1", "datum:r1/0",
		"event:e1",
		"event:b1",
		"event:e2",
		"event:e3",
	}
	if !slices.Equal(filler.calls, wantCalls) {
		t.Errorf("calls = %v\nwant %v", filler.calls, wantCalls)
	}

	loaded := map[string]any{}
	for _, r := range records {
		if r.Kind != KindEvent || r.Doc.String("descriptor") != "d1" {
			continue
		}
		data, _ := r.Doc.Get("data").(map[string]any)
		loaded[r.Doc.String("uid")] = data["det"]
		if strings.HasPrefix(fmt.Sprint(data["det"]), "loaded") && r.Doc.Raw() != nil {
			t.Errorf("%s filled but still carries source bytes", r.Doc.String("uid"))
		}
	}
	if loaded["e1"] != "loaded r1/0" || loaded["e2"] != "loaded r1/1" || loaded["e3"] != float64(3) {
		t.Errorf("event data = %v", loaded)
	}
}

func TestReadPartitionFillErrors(t *testing.T) {
	boom := errors.New("handler failed")

	tests := []struct {
		name   string
		filler FillerFunc
		want   error
	}{
		{"filler error", func(Kind, *Document) error { return boom }, boom},
		{"unknown datum", func(k Kind, d *Document) error {
			if k == KindEvent {
				return &UnresolvedError{Key: "r9/0"}
			}
			return nil
		}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := sampleEntry(t, Config{
				NewFiller: func(map[string]string) (Filler, error) { return tt.filler, nil },
			})
			if _, err := entry.ReadPartition(0); !errors.Is(err, tt.want) {
				t.Errorf("ReadPartition error = %v, want %v", err, tt.want)
			}
		})
	}
}
