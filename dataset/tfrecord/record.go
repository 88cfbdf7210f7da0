// Package tfrecord reads and writes TFRecord files, the container format used
// by Earth Engine TFRecord exports: length-prefixed records with masked
// CRC32-C checksums, optionally wrapped in GZIP at the file level.
package tfrecord

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// maskDelta is the checksum mask constant from the TFRecord specification.
const maskDelta = 0xa282ead8

// maskedCRC computes the masked CRC32-C checksum TFRecord framing uses.
func maskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, castagnoli)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Reader reads consecutive records from a TFRecord stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a Reader over an uncompressed TFRecord stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record payload. It returns io.EOF after the last
// record, and an error if a length or data checksum does not verify.
func (r *Reader) Next() ([]byte, error) {
	var header [12]byte
	if _, err := io.ReadFull(r.r, header[:8]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated record length: %w", err)
		}
		return nil, err
	}
	if _, err := io.ReadFull(r.r, header[8:]); err != nil {
		return nil, fmt.Errorf("truncated length checksum: %w", err)
	}

	length := binary.LittleEndian.Uint64(header[:8])
	lengthCRC := binary.LittleEndian.Uint32(header[8:])
	if got := maskedCRC(header[:8]); got != lengthCRC {
		return nil, fmt.Errorf("length checksum mismatch: expected %#x, got %#x", lengthCRC, got)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("truncated record payload: %w", err)
	}

	var footer [4]byte
	if _, err := io.ReadFull(r.r, footer[:]); err != nil {
		return nil, fmt.Errorf("truncated data checksum: %w", err)
	}
	dataCRC := binary.LittleEndian.Uint32(footer[:])
	if got := maskedCRC(payload); got != dataCRC {
		return nil, fmt.Errorf("data checksum mismatch: expected %#x, got %#x", dataCRC, got)
	}

	return payload, nil
}

// Writer writes records to a TFRecord stream.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer over an uncompressed TFRecord stream.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one record with its framing checksums.
func (w *Writer) Write(payload []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))

	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(payload))
	if _, err := w.w.Write(footer[:]); err != nil {
		return fmt.Errorf("write record checksum: %w", err)
	}
	return nil
}

// FileReader reads records from a TFRecord file on disk.
type FileReader struct {
	*Reader
	f  *os.File
	gz *gzip.Reader
}

// Open opens a TFRecord file for reading. Files ending in .gz are
// decompressed transparently, matching the Earth Engine export default.
func Open(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tfrecord file: %w", err)
	}

	fr := &FileReader{f: f}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		fr.gz = gz
		fr.Reader = NewReader(gz)
	} else {
		fr.Reader = NewReader(f)
	}
	return fr, nil
}

// Close closes the underlying file.
func (r *FileReader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	return r.f.Close()
}

// FileWriter writes records to a TFRecord file on disk.
type FileWriter struct {
	*Writer
	f  *os.File
	gz *gzip.Writer
}

// Create creates a TFRecord file for writing. Files ending in .gz are
// compressed transparently.
func Create(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create tfrecord file: %w", err)
	}

	fw := &FileWriter{f: f}
	if strings.HasSuffix(path, ".gz") {
		fw.gz = gzip.NewWriter(f)
		fw.Writer = NewWriter(fw.gz)
	} else {
		fw.Writer = NewWriter(f)
	}
	return fw, nil
}

// Close flushes and closes the underlying file.
func (w *FileWriter) Close() error {
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			w.f.Close()
			return fmt.Errorf("close gzip stream: %w", err)
		}
	}
	return w.f.Close()
}
