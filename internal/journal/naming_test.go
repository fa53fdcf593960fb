package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentName(t *testing.T) {
	name := SegmentName(42)
	assert.Equal(t, "0000000000000000042.journal", name)
	assert.Len(t, name, 34)
}

func TestParseSegmentName(t *testing.T) {
	tests := []struct {
		name string
		seq  uint64
		ok   bool
	}{
		{"0000000000000000001.journal", 1, true},
		{"0000000000000012345.journal", 12345, true},
		{"0000000000000000001.journal.unusedFile1700000000000", 0, false},
		{"000000000000000001.journal", 0, false},
		{"000000000000000000a.journal", 0, false},
		{"+000000000000000001.journal", 0, false},
		{"0000000000000000001.snapshot", 0, false},
		{"notes.txt", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, ok := ParseSegmentName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.seq, seq)
		})
	}
}

func TestSegmentName_RoundTrip(t *testing.T) {
	for _, seq := range []uint64{1, 9, 10, 999999, 1<<63 - 1} {
		got, ok := ParseSegmentName(SegmentName(seq))
		assert.True(t, ok)
		assert.Equal(t, seq, got)
	}
}
