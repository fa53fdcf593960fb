package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	headerSize = 12

	// maxPayload bounds a single record. A larger length can only come from
	// a damaged header.
	maxPayload = 1 << 30
)

var (
	// ErrTruncated marks a record cut short by a crash mid-write.
	ErrTruncated = errors.New("truncated journal record")

	// ErrCorrupt marks a record whose checksum or encoding is wrong.
	ErrCorrupt = errors.New("corrupt journal record")
)

// Record is one journaled transaction.
type Record struct {
	ExecutedAt  time.Time
	Transaction []byte
}

// wireRecord is the encoded form of Record. Time is stored as Unix
// nanoseconds so decoding never depends on the local time zone.
type wireRecord struct {
	ExecutedAt  int64  `msgpack:"at"`
	Transaction []byte `msgpack:"tx"`
}

// encodeFrame returns the framed bytes for rec.
func encodeFrame(rec Record) ([]byte, error) {
	payload, err := msgpack.Marshal(wireRecord{
		ExecutedAt:  rec.ExecutedAt.UnixNano(),
		Transaction: rec.Transaction,
	})
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if len(payload) > maxPayload {
		return nil, fmt.Errorf("encode record: payload of %d bytes exceeds %d", len(payload), maxPayload)
	}

	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint64(frame[4:12], xxhash.Sum64(payload))
	copy(frame[headerSize:], payload)
	return frame, nil
}

// Reader reads framed records sequentially.
type Reader struct {
	r      *bufio.Reader
	offset int64 // bytes consumed by complete records
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Offset returns the number of bytes taken by the complete records read so
// far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next returns the next record. It returns io.EOF when the input ends on a
// record boundary, ErrTruncated when it ends inside a record, and ErrCorrupt
// for a record that fails its checksum or cannot be decoded.
func (r *Reader) Next() (Record, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, ErrTruncated
		}
		return Record{}, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	sum := binary.BigEndian.Uint64(header[4:12])
	if length > maxPayload {
		return Record{}, fmt.Errorf("%w: length %d at offset %d", ErrCorrupt, length, r.offset)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, ErrTruncated
		}
		return Record{}, err
	}

	if xxhash.Sum64(payload) != sum {
		return Record{}, fmt.Errorf("%w: checksum mismatch at offset %d", ErrCorrupt, r.offset)
	}

	var wire wireRecord
	if err := msgpack.Unmarshal(payload, &wire); err != nil {
		return Record{}, fmt.Errorf("%w: at offset %d: %v", ErrCorrupt, r.offset, err)
	}

	r.offset += int64(headerSize) + int64(length)
	return Record{
		ExecutedAt:  time.Unix(0, wire.ExecutedAt).UTC(),
		Transaction: wire.Transaction,
	}, nil
}
