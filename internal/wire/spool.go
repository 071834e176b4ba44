package wire

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/aggregate"
	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/risk"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/types/known/structpb"
)

// WriteAccumulator writes acc as block number block of blocks: a header
// followed by one frame per asset and per taxonomy. The block is written
// under a single lock so concurrent writers never interleave frames.
func (w *Writer) WriteAccumulator(block, blocks int, acc *aggregate.Accumulator) error {
	rows, cols := acc.Shape()
	assetKeys := acc.AssetKeys()
	taxKeys := acc.TaxonomyKeys()

	frames := make([]*structpb.Struct, 0, 1+len(assetKeys)+len(taxKeys))
	frames = append(frames, NewHeaderFrame(Header{
		Version:    config.SpoolVersion,
		Block:      block,
		Blocks:     blocks,
		Rows:       rows,
		Cols:       cols,
		Assets:     len(assetKeys),
		Taxonomies: len(taxKeys),
	}))

	for _, k := range assetKeys {
		e, ok := acc.Asset(k)
		if !ok {
			continue
		}
		frames = append(frames, &structpb.Struct{Fields: map[string]*structpb.Value{
			"kind":     structpb.NewStringValue(KindAsset),
			"gsim":     structpb.NewStringValue(k.GSIM),
			"asset_id": structpb.NewStringValue(e.Asset.ID),
			"taxonomy": structpb.NewStringValue(e.Asset.Taxonomy),
			"number":   structpb.NewNumberValue(e.Asset.Number),
			"lon":      structpb.NewNumberValue(e.Asset.Location.Lon),
			"lat":      structpb.NewNumberValue(e.Asset.Location.Lat),
			"data":     numberList(flatten(e.Damages)),
		}})
	}
	for _, k := range taxKeys {
		m, ok := acc.Taxonomy(k)
		if !ok {
			continue
		}
		frames = append(frames, &structpb.Struct{Fields: map[string]*structpb.Value{
			"kind":     structpb.NewStringValue(KindTaxonomy),
			"gsim":     structpb.NewStringValue(k.GSIM),
			"taxonomy": structpb.NewStringValue(k.Taxonomy),
			"data":     numberList(flatten(m)),
		}})
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range frames {
		if err := w.write(f); err != nil {
			return fmt.Errorf("block %d: %w", block, err)
		}
	}
	return nil
}

// ReadAccumulator reads the next block. It returns io.EOF when the stream
// ends before a header.
func (r *Reader) ReadAccumulator() (Header, *aggregate.Accumulator, error) {
	frame, err := r.Read()
	if err != nil {
		return Header{}, nil, err
	}
	h, err := ParseHeader(frame)
	if err != nil {
		return Header{}, nil, err
	}

	acc := aggregate.New()
	for i := 0; i < h.Assets+h.Taxonomies; i++ {
		frame, err := r.Read()
		if err == io.EOF {
			return h, nil, fmt.Errorf("block %d truncated after %d frames: %w", h.Block, i, io.ErrUnexpectedEOF)
		}
		if err != nil {
			return h, nil, err
		}
		if err := addFrame(acc, h, frame); err != nil {
			return h, nil, fmt.Errorf("block %d: %w", h.Block, err)
		}
	}
	return h, acc, nil
}

// ReadAll reads every block of the stream and merges them into a single
// accumulator. Every block of the run must appear exactly once.
func (r *Reader) ReadAll() (*aggregate.Accumulator, int, error) {
	total := aggregate.New()
	seen := make(map[int]bool)
	expected := 0
	for {
		h, acc, err := r.ReadAccumulator()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, len(seen), err
		}

		if expected == 0 {
			expected = h.Blocks
		} else if h.Blocks != expected {
			return nil, len(seen), errors.NewInvalidValue("blocks", h.Blocks,
				fmt.Sprintf("block %d disagrees with %d announced before", h.Block, expected))
		}
		if seen[h.Block] {
			return nil, len(seen), errors.NewDuplicate("block", strconv.Itoa(h.Block))
		}
		seen[h.Block] = true

		if err := total.Merge(acc); err != nil {
			return nil, len(seen), err
		}
	}

	if len(seen) == 0 || len(seen) != expected {
		return nil, len(seen), fmt.Errorf("%d of %d blocks: %w", len(seen), expected, errors.ErrIncomplete)
	}
	return total, len(seen), nil
}

// ReadSpool merges every block of the spool file at path.
func ReadSpool(path string) (*aggregate.Accumulator, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errors.NewNotFound("spool", path)
		}
		return nil, 0, fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	acc, blocks, err := NewReader(f).ReadAll()
	if err != nil {
		return nil, blocks, fmt.Errorf("read spool %s: %w", path, err)
	}
	return acc, blocks, nil
}

func addFrame(acc *aggregate.Accumulator, h Header, frame *structpb.Struct) error {
	data := numbersField(frame, "data")
	if len(data) != h.Rows*h.Cols {
		return errors.NewShapeMismatch("frame", h.Rows, h.Cols, len(data), 1)
	}
	m := mat.NewDense(h.Rows, h.Cols, data)

	gsim := stringField(frame, "gsim")
	switch kind := stringField(frame, "kind"); kind {
	case KindAsset:
		asset := risk.Asset{
			ID:       stringField(frame, "asset_id"),
			Taxonomy: stringField(frame, "taxonomy"),
			Number:   frame.GetFields()["number"].GetNumberValue(),
			Location: risk.Location{
				Lon: frame.GetFields()["lon"].GetNumberValue(),
				Lat: frame.GetFields()["lat"].GetNumberValue(),
			},
		}
		return acc.AddAsset(gsim, asset, m)
	case KindTaxonomy:
		return acc.AddTaxonomy(gsim, stringField(frame, "taxonomy"), m)
	default:
		return errors.NewInvalidValue("kind", kind, "unexpected frame")
	}
}

func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}
