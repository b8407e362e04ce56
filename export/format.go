package export

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/hupe1980/vecsim/edges"
	"github.com/hupe1980/vecsim/rank"
)

// Frame layout, all integers little endian:
//
//	magic       [4]byte "VSRK"
//	version     uint8
//	compression uint8
//	idLen       uint16
//	idColumn    [idLen]byte
//	records     uint64
//	blocks      framed payload blocks, ended by a zero header
//	checksum    uint32 CRC-32C of the uncompressed payload
//
// Each payload record is uvarint-prefixed source, uvarint-prefixed target,
// the score as raw float64 bits and the rank as uvarint.
const (
	frameMagic   = "VSRK"
	FrameVersion = 1
)

var (
	// ErrInvalidFrame is returned for truncated or malformed frames.
	ErrInvalidFrame = errors.New("export: invalid frame")
	// ErrUnsupportedVersion is returned for frames written by a newer format.
	ErrUnsupportedVersion = errors.New("export: unsupported frame version")
	// ErrChecksumMismatch is returned when the payload checksum does not match.
	ErrChecksumMismatch = errors.New("export: checksum mismatch")
	// ErrUnknownCompression is returned for an unknown compression name or code.
	ErrUnknownCompression = errors.New("export: unknown compression")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const maxStringLen = 1 << 20

// Encode writes t to w as a single frame and returns the bytes written.
// Scores are stored bit-exact.
func Encode(w io.Writer, t *rank.Table, c Compression) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("%w: nil table", ErrInvalidFrame)
	}
	if !c.valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
	id := t.IDColumn()
	if len(id) > math.MaxUint16 {
		return 0, fmt.Errorf("%w: id column name too long", ErrInvalidFrame)
	}

	hdr := make([]byte, 0, 16+len(id))
	hdr = append(hdr, frameMagic...)
	hdr = append(hdr, FrameVersion, byte(c))
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(len(id)))
	hdr = append(hdr, id...)
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(t.Len()))

	n, err := w.Write(hdr)
	written := int64(n)
	if err != nil {
		return written, err
	}

	bw := newBlockWriter(w, c)
	sum := crc32.New(castagnoli)
	payload := io.MultiWriter(bw, sum)

	rec := make([]byte, 0, 64)
	for i := range t.Len() {
		r := t.At(i)
		rec = appendRecord(rec[:0], r)
		if _, err := payload.Write(rec); err != nil {
			return written + bw.written, err
		}
	}
	if err := bw.Close(); err != nil {
		return written + bw.written, err
	}
	written += bw.written

	n, err = w.Write(binary.LittleEndian.AppendUint32(nil, sum.Sum32()))
	return written + int64(n), err
}

func appendRecord(dst []byte, r rank.RankedEdge) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(r.Source)))
	dst = append(dst, r.Source...)
	dst = binary.AppendUvarint(dst, uint64(len(r.Target)))
	dst = append(dst, r.Target...)
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(r.Score))
	return binary.AppendUvarint(dst, uint64(r.Rank))
}

// Header is the decoded frame prefix.
type Header struct {
	Version     uint8
	Compression Compression
	IDColumn    string
	Records     uint64
}

func readHeader(data []byte) (Header, int, error) {
	const fixed = 4 + 1 + 1 + 2
	if len(data) < fixed || string(data[:4]) != frameMagic {
		return Header{}, 0, fmt.Errorf("%w: bad magic", ErrInvalidFrame)
	}
	h := Header{Version: data[4], Compression: Compression(data[5])}
	if h.Version != FrameVersion {
		return Header{}, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if !h.Compression.valid() {
		return Header{}, 0, fmt.Errorf("%w: %d", ErrUnknownCompression, data[5])
	}
	idLen := int(binary.LittleEndian.Uint16(data[6:]))
	off := fixed + idLen
	if len(data) < off+8 {
		return Header{}, 0, fmt.Errorf("%w: truncated header", ErrInvalidFrame)
	}
	h.IDColumn = string(data[fixed:off])
	h.Records = binary.LittleEndian.Uint64(data[off:])
	return h, off + 8, nil
}

// Decode parses a frame produced by Encode.
func Decode(data []byte) (*rank.Table, error) {
	h, off, err := readHeader(data)
	if err != nil {
		return nil, err
	}

	var payload bytes.Buffer
	for {
		block, n, end, err := readBlock(data[off:], h.Compression)
		if err != nil {
			return nil, err
		}
		off += n
		if end {
			break
		}
		payload.Write(block)
	}
	if len(data) != off+4 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidFrame, len(data)-off)
	}
	if crc32.Checksum(payload.Bytes(), castagnoli) != binary.LittleEndian.Uint32(data[off:]) {
		return nil, ErrChecksumMismatch
	}

	// Cap the preallocation, the record count is untrusted.
	rows := make([]rank.RankedEdge, 0, min(h.Records, uint64(payload.Len()/11+1)))
	br := bufio.NewReader(&payload)
	for range h.Records {
		r, err := readRecord(br)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	if br.Buffered() > 0 || payload.Len() > 0 {
		return nil, fmt.Errorf("%w: payload longer than %d records", ErrInvalidFrame, h.Records)
	}
	return rank.NewTable(h.IDColumn, rows)
}

func readRecord(br *bufio.Reader) (rank.RankedEdge, error) {
	src, err := readString(br)
	if err != nil {
		return rank.RankedEdge{}, err
	}
	dst, err := readString(br)
	if err != nil {
		return rank.RankedEdge{}, err
	}
	var bits [8]byte
	if _, err := io.ReadFull(br, bits[:]); err != nil {
		return rank.RankedEdge{}, fmt.Errorf("%w: truncated score", ErrInvalidFrame)
	}
	rk, err := binary.ReadUvarint(br)
	if err != nil {
		return rank.RankedEdge{}, fmt.Errorf("%w: truncated rank", ErrInvalidFrame)
	}
	return rank.RankedEdge{
		Edge: edges.Edge{Source: src, Target: dst, Score: math.Float64frombits(binary.LittleEndian.Uint64(bits[:]))},
		Rank: int(rk),
	}, nil
}

func readString(br *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(br)
	if err != nil {
		return "", fmt.Errorf("%w: truncated length", ErrInvalidFrame)
	}
	if n > maxStringLen {
		return "", fmt.Errorf("%w: string length %d", ErrInvalidFrame, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", fmt.Errorf("%w: truncated string", ErrInvalidFrame)
	}
	return string(buf), nil
}
