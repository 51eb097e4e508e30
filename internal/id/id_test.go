package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsSortable(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

func TestSequenceDeterministic(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s1 := NewSequence(42)
	s2 := NewSequence(42)
	for i := 0; i < 5; i++ {
		at := ts.Add(time.Duration(i) * time.Hour)
		assert.Equal(t, s1.Next(at), s2.Next(at))
	}
}

func TestSequenceSameMillisecondIncreases(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSequence(7)

	a := s.Next(ts)
	b := s.Next(ts)
	assert.Less(t, a, b)
}
