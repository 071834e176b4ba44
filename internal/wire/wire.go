// Package wire provides protobuf framing for spooled partial results.
//
// A spool is a stream of length-delimited google.protobuf.Struct frames
// using protobuf's standard varint encoding. Each block written by a worker
// starts with a header frame announcing how many asset and taxonomy frames
// follow and how many blocks the run has, so a spool can be appended to
// while a calculation runs and read back to resume its post-processing.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/errors"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"
)

// Frame kinds.
const (
	KindHeader   = "header"
	KindAsset    = "asset"
	KindTaxonomy = "taxonomy"
)

// Reader reads length-delimited frames from an io.Reader.
// It is safe for concurrent use.
type Reader struct {
	r  *bufio.Reader
	mu sync.Mutex
}

// NewReader creates a Reader wrapping the given io.Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read reads and unmarshals the next frame. It returns io.EOF, unwrapped,
// at the end of the stream.
// Returns an error if the frame exceeds DefaultMaxFrameSize.
func (r *Reader) Read() (*structpb.Struct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frame := &structpb.Struct{}
	opts := protodelim.UnmarshalOptions{
		MaxSize: config.DefaultMaxFrameSize,
	}
	if err := opts.UnmarshalFrom(r.r, frame); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return frame, nil
}

// Writer writes length-delimited frames to an io.Writer.
// It is safe for concurrent use.
type Writer struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriter creates a Writer wrapping the given io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write marshals and writes a frame with length prefix.
func (w *Writer) Write(frame *structpb.Struct) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(frame)
}

func (w *Writer) write(frame *structpb.Struct) error {
	if _, err := protodelim.MarshalTo(w.w, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// =============================================================================
// Frame Helpers
// =============================================================================

// Header describes one spooled block. Blocks is the number of blocks of
// the run, so a reader can tell a complete spool from a partial one.
type Header struct {
	Version    int
	Block      int
	Blocks     int
	Rows       int
	Cols       int
	Assets     int
	Taxonomies int
}

// NewHeaderFrame builds the frame of h.
func NewHeaderFrame(h Header) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":       structpb.NewStringValue(KindHeader),
		"version":    structpb.NewNumberValue(float64(h.Version)),
		"block":      structpb.NewNumberValue(float64(h.Block)),
		"blocks":     structpb.NewNumberValue(float64(h.Blocks)),
		"rows":       structpb.NewNumberValue(float64(h.Rows)),
		"cols":       structpb.NewNumberValue(float64(h.Cols)),
		"assets":     structpb.NewNumberValue(float64(h.Assets)),
		"taxonomies": structpb.NewNumberValue(float64(h.Taxonomies)),
	}}
}

// ParseHeader decodes a header frame.
func ParseHeader(frame *structpb.Struct) (Header, error) {
	if kind := stringField(frame, "kind"); kind != KindHeader {
		return Header{}, errors.NewInvalidValue("kind", kind, "expected header frame")
	}
	h := Header{
		Version:    intField(frame, "version"),
		Block:      intField(frame, "block"),
		Blocks:     intField(frame, "blocks"),
		Rows:       intField(frame, "rows"),
		Cols:       intField(frame, "cols"),
		Assets:     intField(frame, "assets"),
		Taxonomies: intField(frame, "taxonomies"),
	}
	if h.Version != config.SpoolVersion {
		return Header{}, fmt.Errorf("spool version %d: %w", h.Version, errors.ErrUnsupportedVersion)
	}
	if h.Rows < 0 || h.Cols < 0 || h.Assets < 0 || h.Taxonomies < 0 {
		return Header{}, errors.NewInvalidValue("header", h, "negative count")
	}
	if h.Blocks < 1 || h.Block < 0 || h.Block >= h.Blocks {
		return Header{}, errors.NewInvalidValue("block", h.Block, fmt.Sprintf("outside 0..%d", h.Blocks-1))
	}
	return h, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func intField(s *structpb.Struct, name string) int {
	return int(s.GetFields()[name].GetNumberValue())
}

func numberList(values []float64) *structpb.Value {
	list := make([]*structpb.Value, len(values))
	for i, v := range values {
		list[i] = structpb.NewNumberValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list})
}

func numbersField(s *structpb.Struct, name string) []float64 {
	values := s.GetFields()[name].GetListValue().GetValues()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.GetNumberValue()
	}
	return out
}
