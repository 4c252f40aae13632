package manifest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
)

// Partition file format (little-endian): dim uint32, count uint32, then per
// row idLen uint32, id bytes, dim float32 components.

// PartitionHeader is the partition file's own declaration of its contents.
type PartitionHeader struct {
	Dimensions int
	RowCount   int
}

// Row is one embedding row: an opaque stable document identifier and its vector.
type Row struct {
	DocumentID string
	Vector     []float32
}

// ReadPartitionHeader reads only the header of a partition file.
func ReadPartitionHeader(path string) (*PartitionHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open partition: %w", err)
	}
	defer f.Close()
	return readHeader(f)
}

func readHeader(r io.Reader) (*PartitionHeader, error) {
	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("partition declares zero dimensionality")
	}
	return &PartitionHeader{Dimensions: int(dim), RowCount: int(count)}, nil
}

// PartitionReader streams rows from a single partition file in order.
type PartitionReader struct {
	f      *os.File
	r      *bufio.Reader
	header PartitionHeader
	read   int
	buf    []byte
}

// OpenPartition opens a partition file for streaming reads.
func OpenPartition(path string) (*PartitionReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open partition: %w", err)
	}
	r := bufio.NewReader(f)
	hdr, err := readHeader(r)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &PartitionReader{
		f:      f,
		r:      r,
		header: *hdr,
		buf:    make([]byte, hdr.Dimensions*4),
	}, nil
}

// Header returns the partition's own header.
func (p *PartitionReader) Header() PartitionHeader {
	return p.header
}

// Next returns the next row, or io.EOF after the declared row count.
func (p *PartitionReader) Next() (*Row, error) {
	if p.read >= p.header.RowCount {
		return nil, io.EOF
	}
	var idLen uint32
	if err := binary.Read(p.r, binary.LittleEndian, &idLen); err != nil {
		return nil, fmt.Errorf("read id length: %w", err)
	}
	idBytes := make([]byte, idLen)
	if _, err := io.ReadFull(p.r, idBytes); err != nil {
		return nil, fmt.Errorf("read id: %w", err)
	}
	if _, err := io.ReadFull(p.r, p.buf); err != nil {
		return nil, fmt.Errorf("read vector: %w", err)
	}
	p.read++
	return &Row{
		DocumentID: string(idBytes),
		Vector:     vector.BytesToFloat32Slice(p.buf),
	}, nil
}

// Close closes the underlying file.
func (p *PartitionReader) Close() error {
	return p.f.Close()
}
