package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// DefaultMaxBatchSize bounds the decompressed size of one inbound batch.
const DefaultMaxBatchSize = 2 << 20

var ErrBatchTooLarge = errors.New("protocol: batch exceeds size limit")

// EncodeBatch packs frames (see EncodeFrame) as uvarint-length-prefixed
// records and compresses the result with raw DEFLATE at level.
func EncodeBatch(frames [][]byte, level int) ([]byte, error) {
	var raw []byte
	for _, f := range frames {
		raw = binary.AppendUvarint(raw, uint64(len(f)))
		raw = append(raw, f...)
	}
	var out bytes.Buffer
	zw, err := flate.NewWriter(&out, level)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	return out.Bytes(), nil
}

// DecodeBatch splits a compressed batch back into frames. maxSize <= 0 uses
// DefaultMaxBatchSize.
func DecodeBatch(b []byte, maxSize int) ([][]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxBatchSize
	}
	zr := flate.NewReader(bytes.NewReader(b))
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if len(raw) > maxSize {
		return nil, ErrBatchTooLarge
	}
	var frames [][]byte
	for off := 0; off < len(raw); {
		n, k := binary.Uvarint(raw[off:])
		if k <= 0 || n > uint64(len(raw)-off-k) {
			return nil, fmt.Errorf("batch: bad frame length at %d: %w", off, ErrShortRead)
		}
		off += k
		frames = append(frames, raw[off:off+int(n)])
		off += int(n)
	}
	return frames, nil
}
