package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes values.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// Compression names a compression algorithm applied after encoding.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression validates a compression name. The empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionZstd:
		return Compression(s), nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}

// Serializer runs a codec followed by optional compression.
type Serializer struct {
	codec       Codec
	compression Compression
}

// NewSerializer creates a serializer. A nil codec means MessagePack.
func NewSerializer(c Codec, compression Compression) *Serializer {
	if c == nil {
		c = NewMsgPackCodec()
	}
	if compression == "" {
		compression = CompressionNone
	}
	return &Serializer{codec: c, compression: compression}
}

// DefaultSerializer is MessagePack compressed with zstd.
func DefaultSerializer() *Serializer {
	return NewSerializer(NewMsgPackCodec(), CompressionZstd)
}

// Name describes the pipeline, e.g. "msgpack+zstd".
func (s *Serializer) Name() string {
	if s.compression == CompressionNone {
		return s.codec.Name()
	}
	return s.codec.Name() + "+" + string(s.compression)
}

// Serialize encodes then compresses v.
func (s *Serializer) Serialize(v any) ([]byte, error) {
	data, err := s.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%s encoding failed: %w", s.codec.Name(), err)
	}
	data, err = s.compress(data)
	if err != nil {
		return nil, fmt.Errorf("%s compression failed: %w", s.compression, err)
	}
	return data, nil
}

// Deserialize decompresses then decodes data into v.
func (s *Serializer) Deserialize(data []byte, v any) error {
	data, err := s.decompress(data)
	if err != nil {
		return fmt.Errorf("%s decompression failed: %w", s.compression, err)
	}
	if err := s.codec.Decode(data, v); err != nil {
		return fmt.Errorf("%s decoding failed: %w", s.codec.Name(), err)
	}
	return nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	switch s.compression {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	switch s.compression {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

// MsgPackCodec implements MessagePack serialization.
type MsgPackCodec struct{}

// NewMsgPackCodec creates the baseline binary codec.
func NewMsgPackCodec() Codec {
	return MsgPackCodec{}
}

func (MsgPackCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgPackCodec) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (MsgPackCodec) Name() string {
	return "msgpack"
}

// JSONCodec implements JSON serialization. Useful for snapshots that
// operators want to read by hand.
type JSONCodec struct{}

// NewJSONCodec creates a JSON codec.
func NewJSONCodec() Codec {
	return JSONCodec{}
}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string {
	return "json"
}

// ByName returns the codec registered under name ("msgpack" or "json").
func ByName(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return NewMsgPackCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
