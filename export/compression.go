package export

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block codec of an exported frame.
type Compression uint8

const (
	// CompressionNone stores blocks as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio, the default).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd" (case-insensitive).
// The empty string selects zstd.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

func (c Compression) valid() bool { return c <= CompressionZSTD }

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

// Block layout: [UncompressedSize uint32][CompressedSize uint32][data].
// CompressedSize 0 marks a stored block. A header of two zeros ends the
// block sequence.
const blockHeaderSize = 8

// blockSize is the uncompressed payload size of a full block.
const blockSize = 64 << 10

// appendBlock compresses data and appends the framed block to dst. Blocks
// that do not shrink below 90% are stored uncompressed.
func appendBlock(dst, data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(data)))
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		dst = append(dst, hdr[:]...)
		return append(dst, data...), nil
	}
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(compressed)))
	dst = append(dst, hdr[:]...)
	return append(dst, compressed...), nil
}

// readBlock decodes the block at the start of data. It returns the payload,
// the number of bytes consumed and whether this was the end marker.
func readBlock(data []byte, c Compression) (payload []byte, n int, end bool, err error) {
	if len(data) < blockHeaderSize {
		return nil, 0, false, fmt.Errorf("%w: truncated block header", ErrInvalidFrame)
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])
	if uncompressedSize == 0 && compressedSize == 0 {
		return nil, blockHeaderSize, true, nil
	}
	if uncompressedSize > blockSize || compressedSize > blockSize {
		return nil, 0, false, fmt.Errorf("%w: block of %d/%d bytes exceeds %d", ErrInvalidFrame, uncompressedSize, compressedSize, blockSize)
	}

	if compressedSize == 0 {
		stop := blockHeaderSize + int(uncompressedSize)
		if len(data) < stop {
			return nil, 0, false, fmt.Errorf("%w: stored block too small", ErrInvalidFrame)
		}
		return data[blockHeaderSize:stop], stop, false, nil
	}

	stop := blockHeaderSize + int(compressedSize)
	if len(data) < stop {
		return nil, 0, false, fmt.Errorf("%w: compressed block too small", ErrInvalidFrame)
	}
	src := data[blockHeaderSize:stop]
	out := make([]byte, uncompressedSize)

	switch c {
	case CompressionLZ4:
		got, err := lz4.UncompressBlock(src, out)
		if err != nil {
			return nil, 0, false, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		if uint32(got) != uncompressedSize {
			return nil, 0, false, errors.Join(ErrInvalidFrame, errors.New("decompressed size mismatch"))
		}
		return out, stop, false, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(src, out[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, 0, false, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		if uint32(len(decoded)) != uncompressedSize {
			return nil, 0, false, errors.Join(ErrInvalidFrame, errors.New("decompressed size mismatch"))
		}
		return decoded, stop, false, nil
	default:
		return nil, 0, false, fmt.Errorf("%w: compressed block in %s frame", ErrInvalidFrame, c)
	}
}

// blockWriter buffers payload bytes and emits framed blocks to w.
type blockWriter struct {
	w           io.Writer
	compression Compression
	buf         []byte
	out         []byte
	written     int64
}

func newBlockWriter(w io.Writer, c Compression) *blockWriter {
	return &blockWriter{w: w, compression: c, buf: make([]byte, 0, blockSize)}
}

func (bw *blockWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		room := blockSize - len(bw.buf)
		take := min(room, len(p))
		bw.buf = append(bw.buf, p[:take]...)
		p = p[take:]
		if len(bw.buf) == blockSize {
			if err := bw.flush(); err != nil {
				return n - len(p), err
			}
		}
	}
	return n, nil
}

func (bw *blockWriter) flush() error {
	if len(bw.buf) == 0 {
		return nil
	}
	var err error
	bw.out, err = appendBlock(bw.out[:0], bw.buf, bw.compression)
	if err != nil {
		return err
	}
	bw.buf = bw.buf[:0]
	return bw.emit(bw.out)
}

func (bw *blockWriter) emit(p []byte) error {
	n, err := bw.w.Write(p)
	bw.written += int64(n)
	return err
}

// Close flushes the pending block and writes the end marker.
func (bw *blockWriter) Close() error {
	if err := bw.flush(); err != nil {
		return err
	}
	return bw.emit(make([]byte, blockHeaderSize))
}
