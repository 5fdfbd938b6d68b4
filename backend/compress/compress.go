// Package compress provides a backend.Backend decorator that compresses
// segment payloads.
//
// Every stored payload carries a 5-byte header:
//
//	Type (1 byte) | UncompressedSize (4 bytes, little-endian) | Data...
//
// The type is recorded per payload, so files written with different settings
// (or stored uncompressed because compression did not help) read back alike.
package compress

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used.
type Type uint8

const (
	// None stores payloads as is.
	None Type = 0
	// LZ4 indicates LZ4 block compression (fast, good for hot data).
	LZ4 Type = 1
	// ZSTD indicates ZSTD block compression (better ratio, good for cold data).
	ZSTD Type = 2
)

// String returns the stable name of the type.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseType parses a name produced by Type.String.
func ParseType(name string) (Type, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("unknown compression type %q", name)
	}
}

const headerSize = 5

// ErrCorrupt is returned when a stored payload cannot be decoded.
var ErrCorrupt = errors.New("compress: corrupt payload")

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Store wraps a Backend and compresses segment payloads.
type Store struct {
	inner backend.Backend
	typ   Type
}

var (
	_ backend.Backend   = (*Store)(nil)
	_ backend.Unwrapper = (*Store)(nil)
)

// New creates a compressing decorator.
func New(inner backend.Backend, typ Type) *Store {
	return &Store{inner: inner, typ: typ}
}

// Unwrap returns the decorated backend.
func (s *Store) Unwrap() backend.Backend {
	return s.inner
}

// Encode compresses data with typ and prepends the header.
// Falls back to None if compression does not help (ratio > 0.9).
func Encode(data []byte, typ Type) ([]byte, error) {
	var compressed []byte

	switch typ {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case None:
	default:
		return nil, fmt.Errorf("unknown compression type %d", typ)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		typ = None
		compressed = data
	}

	out := make([]byte, headerSize+len(compressed))
	out[0] = byte(typ)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	copy(out[headerSize:], compressed)
	return out, nil
}

// Decode reverses Encode.
func Decode(payload []byte) ([]byte, error) {
	if len(payload) < headerSize {
		return nil, fmt.Errorf("%w: payload too small for header", ErrCorrupt)
	}

	typ := Type(payload[0])
	size := binary.LittleEndian.Uint32(payload[1:])
	data := payload[headerSize:]

	switch typ {
	case None:
		if uint32(len(data)) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		out := make([]byte, size)
		copy(out, data)
		return out, nil

	case LZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil

	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(len(out)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %d", ErrCorrupt, typ)
	}
}

// PutSegment implements backend.Backend.
func (s *Store) PutSegment(ctx context.Context, scope string, id uuid.UUID, segment uint32, data []byte) error {
	payload, err := Encode(data, s.typ)
	if err != nil {
		return err
	}
	return s.inner.PutSegment(ctx, scope, id, segment, payload)
}

// ScanSegments implements backend.Backend.
func (s *Store) ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]backend.Segment, error) {
	segs, err := s.inner.ScanSegments(ctx, scope, id, from, to)
	if err != nil {
		return nil, err
	}
	for i := range segs {
		data, err := Decode(segs[i].Data)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", segs[i].Number, err)
		}
		segs[i].Data = data
	}
	return segs, nil
}

// PutIndex implements backend.Backend.
func (s *Store) PutIndex(ctx context.Context, scope, name string, id uuid.UUID) error {
	return s.inner.PutIndex(ctx, scope, name, id)
}

// LookupIndex implements backend.Backend.
func (s *Store) LookupIndex(ctx context.Context, scope, name string) (uuid.UUID, error) {
	return s.inner.LookupIndex(ctx, scope, name)
}

// ListIndex implements backend.Backend.
func (s *Store) ListIndex(ctx context.Context, scope string) ([]string, error) {
	return s.inner.ListIndex(ctx, scope)
}
