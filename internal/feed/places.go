package feed

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geonames-cli/internal/model"
)

// allCountries.txt column offsets.
const (
	colGeonameID   = 0
	colName        = 1
	colLat         = 4
	colLon         = 5
	colFeatureCode = 7
	colCountryCode = 8
	colAdmin1      = 10
)

// PlaceReader streams PlaceRecords from an allCountries dump. It is a
// single-pass reader; callers needing a second pass re-open the source.
type PlaceReader struct {
	ls        *lineScanner
	closer    io.Closer
	size      int64
	malformed int64
}

// OpenPlaces opens a places feed at path (zip archive or plain text).
func OpenPlaces(path string) (*PlaceReader, error) {
	rc, size, err := openSource(path)
	if err != nil {
		return nil, err
	}
	r := NewPlaceReader(rc)
	r.closer = rc
	r.size = size
	return r, nil
}

// NewPlaceReader streams places from an already-open reader.
func NewPlaceReader(r io.Reader) *PlaceReader {
	return &PlaceReader{ls: newLineScanner(r)}
}

// Size returns the uncompressed byte size of the source, 0 when unknown.
func (r *PlaceReader) Size() int64 { return r.size }

// Malformed returns the number of rows skipped so far.
func (r *PlaceReader) Malformed() int64 { return r.malformed }

// SetProgress attaches a byte-progress sink consuming line lengths.
func (r *PlaceReader) SetProgress(sink ProgressSink) { r.ls.sink = sink }

// Next returns the next well-formed place record, io.EOF at end of feed.
// Rows failing basic field parsing are skipped and counted.
func (r *PlaceReader) Next() (*model.PlaceRecord, error) {
	for {
		row := r.ls.next()
		if row == nil {
			if err := r.ls.err(); err != nil {
				return nil, eris.Wrap(err, "feed: read places")
			}
			return nil, io.EOF
		}

		rec, ok := parsePlace(row)
		if !ok {
			r.malformed++
			continue
		}
		return rec, nil
	}
}

// Close closes the underlying source.
func (r *PlaceReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// parsePlace converts a raw feed row into a PlaceRecord. A row is malformed
// when it is too short or its id or coordinates do not parse.
func parsePlace(row []string) (*model.PlaceRecord, bool) {
	if len(row) <= colCountryCode {
		return nil, false
	}

	id, err := strconv.ParseInt(field(row, colGeonameID), 10, 64)
	if err != nil {
		return nil, false
	}
	lat, err := strconv.ParseFloat(field(row, colLat), 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(field(row, colLon), 64)
	if err != nil {
		return nil, false
	}

	return &model.PlaceRecord{
		GeonameID:   id,
		Name:        field(row, colName),
		FeatureCode: field(row, colFeatureCode),
		CountryCode: field(row, colCountryCode),
		Admin1:      field(row, colAdmin1),
		Admin2:      field(row, colAdmin1+1),
		Admin3:      field(row, colAdmin1+2),
		Admin4:      field(row, colAdmin1+3),
		Lat:         lat,
		Lon:         lon,
	}, true
}
