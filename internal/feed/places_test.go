package feed

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// placeRow builds a 19-column dump row with the fields we care about filled.
func placeRow(id, name, lat, lon, fcode, country, a1, a2, a3, a4 string) string {
	row := make([]string, 19)
	row[colGeonameID] = id
	row[colName] = name
	row[colLat] = lat
	row[colLon] = lon
	row[colFeatureCode] = fcode
	row[colCountryCode] = country
	row[colAdmin1] = a1
	row[colAdmin1+1] = a2
	row[colAdmin1+2] = a3
	row[colAdmin1+3] = a4
	return strings.Join(row, "\t")
}

func TestPlaceReader_Next(t *testing.T) {
	input := strings.Join([]string{
		placeRow("2921044", "Germany", "51.5", "10.5", "PCLI", "DE", "", "", "", ""),
		placeRow("2951839", "Bavaria", "49.0", "11.5", "ADM1", "DE", "02", "", "", ""),
		placeRow("2867714", "Munich", "48.13743", "11.57549", "PPLA", "DE", "02", "091", "09162", "09162000"),
	}, "\n")

	r := NewPlaceReader(strings.NewReader(input))

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2921044), first.GeonameID)
	assert.Equal(t, "Germany", first.Name)
	assert.Equal(t, "PCLI", first.FeatureCode)
	assert.Equal(t, "DE", first.CountryCode)
	assert.Empty(t, first.Admin1)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "02", second.Admin1)

	third, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2867714), third.GeonameID)
	assert.InDelta(t, 48.13743, third.Lat, 1e-9)
	assert.InDelta(t, 11.57549, third.Lon, 1e-9)
	assert.Equal(t, "09162000", third.Admin4)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, r.Malformed())
}

func TestPlaceReader_SkipsMalformedRows(t *testing.T) {
	input := strings.Join([]string{
		"",
		"# comment header",
		"too\tshort",
		placeRow("notanumber", "Bad ID", "1.0", "1.0", "PPL", "DE", "", "", "", ""),
		placeRow("5", "Bad Lat", "north", "1.0", "PPL", "DE", "", "", "", ""),
		placeRow("6", "Bad Lon", "1.0", "east", "PPL", "DE", "", "", "", ""),
		placeRow("7", "Good", "1.0", "2.0", "PPL", "DE", "", "", "", ""),
	}, "\n")

	r := NewPlaceReader(strings.NewReader(input))

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.GeonameID)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(4), r.Malformed(), "blank and comment lines are not malformed")
}

type countingSink struct{ bytes int }

func (c *countingSink) Add(n int) error {
	c.bytes += n
	return nil
}

func TestPlaceReader_ReportsProgress(t *testing.T) {
	line := placeRow("7", "Good", "1.0", "2.0", "PPL", "DE", "", "", "", "")
	r := NewPlaceReader(strings.NewReader(line + "\n"))

	sink := &countingSink{}
	r.SetProgress(sink)

	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, len(line)+1, sink.bytes)
}
