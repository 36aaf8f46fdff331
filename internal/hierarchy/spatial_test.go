package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpatialIndex_NearestDistrict(t *testing.T) {
	s := NewSpatialIndex(0)

	// Three Bavarian districts at known coordinates.
	s.Add("DE", 1, 48.137, 11.575) // Munich
	s.Add("DE", 2, 49.453, 11.077) // Nuremberg
	s.Add("DE", 3, 49.894, 10.885) // Bamberg

	tests := []struct {
		name     string
		lat, lon float64
		expected int64
	}{
		{"near Munich", 48.2, 11.6, 1},
		{"near Nuremberg", 49.5, 11.0, 2},
		{"near Bamberg", 49.9, 10.9, 3},
		{"between, closer to Nuremberg", 49.3, 11.2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := s.NearestDistrict("DE", tt.lat, tt.lon)
			require.True(t, ok)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestSpatialIndex_ScopedPerCountry(t *testing.T) {
	s := NewSpatialIndex(0)
	s.Add("DE", 1, 48.137, 11.575)
	s.Add("AT", 2, 48.208, 16.373) // Vienna

	// A point in Austria near the German border must not match the German
	// district when queried in AT scope.
	id, ok := s.NearestDistrict("AT", 48.3, 14.3)
	require.True(t, ok)
	assert.Equal(t, int64(2), id)

	// No districts indexed for the country at all.
	_, ok = s.NearestDistrict("FR", 48.85, 2.35)
	assert.False(t, ok)

	assert.Equal(t, 1, s.Districts("DE"))
	assert.Equal(t, 0, s.Districts("FR"))
}

func TestSpatialIndex_TieBreaksByLowerID(t *testing.T) {
	s := NewSpatialIndex(0)

	// Two districts equidistant from the query point.
	s.Add("US", 9, 10.0, 1.0)
	s.Add("US", 4, 10.0, -1.0)

	id, ok := s.NearestDistrict("US", 10.0, 0.0)
	require.True(t, ok)
	assert.Equal(t, int64(4), id)
}

func TestSpatialIndex_EmptyCountryCodeIgnored(t *testing.T) {
	s := NewSpatialIndex(0)
	s.Add("", 1, 0, 0)
	_, ok := s.NearestDistrict("", 0, 0)
	assert.False(t, ok)
}
