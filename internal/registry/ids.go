package registry

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Identifier array format (little-endian): count uint32, then per row
// idLen uint32 + id bytes, in exact index-row order.

// WriteIDs persists the identifier array to path.
func WriteIDs(path string, ids []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create ids dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ids file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, id := range ids {
		b := []byte(id)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
			return fmt.Errorf("write id length: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
	}
	return w.Flush()
}

// ReadIDs loads the identifier array from path.
func ReadIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ids file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	ids := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read id length: %w", err)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, fmt.Errorf("read id: %w", err)
		}
		ids = append(ids, string(b))
	}
	return ids, nil
}
