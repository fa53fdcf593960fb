package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Entry is one record found by Scan.
type Entry struct {
	Seq         uint64
	ExecutedAt  time.Time
	Transaction []byte
	Segment     string
}

// Tail describes how a segment ends.
type Tail string

const (
	TailClean     Tail = "clean"
	TailTruncated Tail = "truncated"
	TailCorrupt   Tail = "corrupt"
)

// SegmentInfo summarizes one segment file.
type SegmentInfo struct {
	Name    string `json:"name"`
	First   uint64 `json:"first"`
	Records int    `json:"records"`
	Bytes   int64  `json:"bytes"`
	Tail    Tail   `json:"tail"`
}

// Segments summarizes every segment in dir, in order. It never modifies the
// directory.
func Segments(dir string) ([]SegmentInfo, error) {
	seqs, err := segmentNumbers(dir)
	if err != nil {
		return nil, err
	}

	infos := make([]SegmentInfo, 0, len(seqs))
	for _, seq := range seqs {
		info := SegmentInfo{Name: SegmentName(seq), First: seq}
		path := filepath.Join(dir, info.Name)

		st, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		info.Bytes = st.Size()

		tail, err := readSegment(path, func(Record) error {
			info.Records++
			return nil
		})
		if err != nil {
			return nil, err
		}
		info.Tail = tail
		infos = append(infos, info)
	}
	return infos, nil
}

// Scan calls fn for every complete record numbered from and above, in order.
// Unlike Update it tolerates damage: a truncated or corrupt tail ends its
// segment and scanning moves on. It never modifies the directory.
func Scan(dir string, from uint64, fn func(Entry) error) error {
	seqs, err := segmentNumbers(dir)
	if err != nil {
		return err
	}

	for i, first := range seqs {
		if i+1 < len(seqs) && seqs[i+1] <= from {
			continue // every record of this segment precedes from
		}
		name := SegmentName(first)
		seq := first
		_, err := readSegment(filepath.Join(dir, name), func(rec Record) error {
			defer func() { seq++ }()
			if seq < from {
				return nil
			}
			return fn(Entry{
				Seq:         seq,
				ExecutedAt:  rec.ExecutedAt,
				Transaction: rec.Transaction,
				Segment:     name,
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// readSegment feeds each complete record of a segment to fn and reports how
// the segment ends.
func readSegment(path string, fn func(Record) error) (Tail, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open segment: %w", err)
	}
	defer f.Close()

	r := NewReader(f)
	for {
		rec, err := r.Next()
		switch {
		case errors.Is(err, io.EOF):
			return TailClean, nil
		case errors.Is(err, ErrTruncated):
			return TailTruncated, nil
		case errors.Is(err, ErrCorrupt):
			return TailCorrupt, nil
		case err != nil:
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(rec); err != nil {
			return "", err
		}
	}
}
