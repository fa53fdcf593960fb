package journal

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// Extension marks journal segment files.
	Extension = ".journal"

	digits = 19

	// nameLength is the length of every segment file name.
	nameLength = digits + len(Extension)

	unusedMarker = ".unusedFile"
)

// SegmentName returns the file name of the segment starting at seq.
func SegmentName(seq uint64) string {
	return fmt.Sprintf("%0*d%s", digits, seq, Extension)
}

// ParseSegmentName returns the first transaction number encoded in a segment
// file name. Names of any other shape are rejected.
func ParseSegmentName(name string) (uint64, bool) {
	if len(name) != nameLength || !strings.HasSuffix(name, Extension) {
		return 0, false
	}
	num := name[:digits]
	for _, r := range num {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	seq, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

func (j *Journal) segmentPath(seq uint64) string {
	return filepath.Join(j.dir, SegmentName(seq))
}
