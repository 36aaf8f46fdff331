package feed

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geonames-cli/internal/model"
)

// alternateNamesV2.txt column offsets.
const (
	colNameGeonameID  = 1
	colNameLang       = 2
	colNameText       = 3
	colNameColloquial = 4
	colNameHistoric   = 5
	colNamePreferred  = 6
	colNameShort      = 7
)

// NameReader streams NameRecords from an alternateNamesV2 dump. Colloquial
// and historic names are filtered out, matching the snapshot semantics of
// the store (current official and preferred names only).
type NameReader struct {
	ls        *lineScanner
	closer    io.Closer
	size      int64
	malformed int64
	filtered  int64
}

// OpenNames opens a names feed at path (zip archive or plain text).
func OpenNames(path string) (*NameReader, error) {
	rc, size, err := openSource(path)
	if err != nil {
		return nil, err
	}
	r := NewNameReader(rc)
	r.closer = rc
	r.size = size
	return r, nil
}

// NewNameReader streams names from an already-open reader.
func NewNameReader(r io.Reader) *NameReader {
	return &NameReader{ls: newLineScanner(r)}
}

// Size returns the uncompressed byte size of the source, 0 when unknown.
func (r *NameReader) Size() int64 { return r.size }

// Malformed returns the number of rows skipped so far.
func (r *NameReader) Malformed() int64 { return r.malformed }

// Filtered returns the number of colloquial/historic rows dropped so far.
func (r *NameReader) Filtered() int64 { return r.filtered }

// SetProgress attaches a byte-progress sink consuming line lengths.
func (r *NameReader) SetProgress(sink ProgressSink) { r.ls.sink = sink }

// Next returns the next name record, io.EOF at end of feed.
func (r *NameReader) Next() (*model.NameRecord, error) {
	for {
		row := r.ls.next()
		if row == nil {
			if err := r.ls.err(); err != nil {
				return nil, eris.Wrap(err, "feed: read names")
			}
			return nil, io.EOF
		}

		if len(row) <= colNameText {
			r.malformed++
			continue
		}
		id, err := strconv.ParseInt(field(row, colNameGeonameID), 10, 64)
		if err != nil {
			r.malformed++
			continue
		}
		if field(row, colNameColloquial) == "1" || field(row, colNameHistoric) == "1" {
			r.filtered++
			continue
		}

		return &model.NameRecord{
			GeonameID:   id,
			Lang:        field(row, colNameLang),
			Name:        field(row, colNameText),
			IsPreferred: field(row, colNamePreferred) == "1",
			IsShort:     field(row, colNameShort) == "1",
		}, nil
	}
}

// Close closes the underlying source.
func (r *NameReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
