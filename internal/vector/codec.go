package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Artifact header layout: strategy byte, metric byte, dim uint32, count uint32.
// All integers are little-endian.

var metricBytes = map[Metric]byte{MetricIP: 0, MetricL2: 1}
var strategyBytes = map[Strategy]byte{StrategyFlat: 0, StrategyHNSW: 1}

func writeHeader(w io.Writer, strategy Strategy, metric Metric, dim, count int) error {
	if _, err := w.Write([]byte{strategyBytes[strategy], metricBytes[metric]}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(dim)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(count)); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	return nil
}

type artifactHeader struct {
	strategy Strategy
	metric   Metric
	dim      int
	count    int
}

func readHeader(r io.Reader) (*artifactHeader, error) {
	var tag [2]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := &artifactHeader{}
	switch tag[0] {
	case 0:
		h.strategy = StrategyFlat
	case 1:
		h.strategy = StrategyHNSW
	default:
		return nil, fmt.Errorf("unknown index strategy byte: %d", tag[0])
	}
	switch tag[1] {
	case 0:
		h.metric = MetricIP
	case 1:
		h.metric = MetricL2
	default:
		return nil, fmt.Errorf("unknown metric byte: %d", tag[1])
	}
	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	h.dim = int(dim)
	h.count = int(count)
	return h, nil
}

// Float32SliceToBytes encodes a float32 slice as little-endian IEEE 754 bytes.
func Float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

// BytesToFloat32Slice decodes little-endian IEEE 754 bytes into a float32 slice.
func BytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
