package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// benchRun writes a run with n events on one descriptor.
func benchRun(b *testing.B, dir, uid string, n int) string {
	b.Helper()
	var sb strings.Builder
	sb.WriteString(docLine(KindStart, fmt.Sprintf(`{"uid": %q, "plan_name": "count", "time": 1700000000}`, uid)) + "\n")
	sb.WriteString(docLine(KindDescriptor, `{"uid": "d1", "name": "primary"}`) + "\n")
	for i := range n {
		sb.WriteString(docLine(KindEvent, fmt.Sprintf(`{"uid": "e%d", "descriptor": "d1", "seq_num": %d, "data": {"det": %d}}`, i, i+1, i)) + "\n")
	}
	sb.WriteString(docLine(KindStop, `{"uid": "s", "exit_status": "success"}`) + "\n")

	path := filepath.Join(dir, uid+".jsonl")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		b.Fatal(err)
	}
	return path
}

func BenchmarkOpen(b *testing.B) {
	dir := b.TempDir()
	var files []string
	for i := range 100 {
		files = append(files, benchRun(b, dir, fmt.Sprintf("r%d", i), 10))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Open(files, Config{Query: Filter{"plan_name": "count"}})
	}
}

func BenchmarkRunStop(b *testing.B) {
	dir := b.TempDir()
	c, _ := Open([]string{benchRun(b, dir, "big", 10000)}, Config{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.RunStop("big")
	}
}

func BenchmarkEventCursorSkip(b *testing.B) {
	dir := b.TempDir()
	c, _ := Open([]string{benchRun(b, dir, "big", 10000)}, Config{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, err := range c.EventCursor("big", []string{"d1"}, Page{Skip: 9900, Limit: 100}) {
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkEventCount(b *testing.B) {
	dir := b.TempDir()
	c, _ := Open([]string{benchRun(b, dir, "big", 10000)}, Config{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.EventCount("big", []string{"d1"})
	}
}

func BenchmarkMatch(b *testing.B) {
	q, _ := Compile(Filter{
		"plan_name": "count",
		"scan_id":   Filter{"$gte": 10},
		"$or":       []any{Filter{"sample": Filter{"$regex": "^Si"}}, Filter{"sample": Filter{"$exists": false}}},
	})
	doc := map[string]any{"plan_name": "count", "scan_id": float64(12), "sample": "Si-111"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Match(doc)
	}
}
