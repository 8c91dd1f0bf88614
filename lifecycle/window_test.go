package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Window
		want bool
	}{
		{"touching endpoints", Window{at(10, 0), at(11, 0)}, Window{at(11, 0), at(12, 0)}, false},
		{"partial overlap", Window{at(10, 0), at(11, 30)}, Window{at(11, 0), at(12, 0)}, true},
		{"contained", Window{at(9, 0), at(17, 0)}, Window{at(10, 0), at(11, 0)}, true},
		{"identical", Window{at(10, 0), at(11, 0)}, Window{at(10, 0), at(11, 0)}, true},
		{"disjoint", Window{at(8, 0), at(9, 0)}, Window{at(10, 0), at(11, 0)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a), "overlap must be symmetric")
		})
	}
}

func TestNewWindow_RejectsEmptyAndReversed(t *testing.T) {
	_, err := NewWindow(at(11, 0), at(11, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidWindow))

	_, err = NewWindow(at(12, 0), at(11, 0))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewWindow(time.Time{}, at(11, 0))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	w, err := NewWindow(at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.True(t, w.Contains(at(10, 0)))
	assert.False(t, w.Contains(at(11, 0)))
}
