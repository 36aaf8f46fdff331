// Package feed streams typed records out of the GeoNames dump archives.
//
// Both feeds are tab-separated text with a variable number of trailing
// fields and occasional embedded quotes, so rows are split manually rather
// than through encoding/csv. Malformed rows are counted and skipped, never
// fatal; only a source that cannot be opened or read aborts the run.
package feed

import (
	"bufio"
	"io"
	"strings"
)

// maxLineBytes bounds a single feed line. The longest rows in the dumps are
// alternate-name aggregations well under 1 MiB.
const maxLineBytes = 1024 * 1024

// ProgressSink receives byte counts as feed lines are consumed. It is
// satisfied by progressbar.ProgressBar.
type ProgressSink interface {
	Add(n int) error
}

// lineScanner reads non-empty, non-comment lines from a feed.
type lineScanner struct {
	s    *bufio.Scanner
	sink ProgressSink
}

func newLineScanner(r io.Reader) *lineScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &lineScanner{s: s}
}

// next returns the fields of the next data line, or nil at end of input.
func (ls *lineScanner) next() []string {
	for ls.s.Scan() {
		line := ls.s.Text()
		if ls.sink != nil {
			_ = ls.sink.Add(len(line) + 1)
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.Split(line, "\t")
	}
	return nil
}

func (ls *lineScanner) err() error {
	return ls.s.Err()
}

// field returns the i-th field of a row, or "" when the row is short.
func field(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
