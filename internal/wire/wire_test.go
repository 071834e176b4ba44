package wire

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/aggregate"
	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/risk"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/types/known/structpb"
)

func testAccumulator(t *testing.T, scale float64) *aggregate.Accumulator {
	t.Helper()
	acc := aggregate.New()
	a1 := risk.Asset{ID: "a1", Taxonomy: "RC", Number: 10, Location: risk.Location{Lon: 15.48, Lat: 38.09}}
	a2 := risk.Asset{ID: "a2", Taxonomy: "W", Number: 2, Location: risk.Location{Lon: 15.5, Lat: 38.1}}

	m1 := mat.NewDense(2, 3, []float64{6, 3, 1, 4, 4, 2})
	m1.Scale(scale, m1)
	m2 := mat.NewDense(2, 3, []float64{1, 1, 0, 0, 1, 1})
	m2.Scale(scale, m2)

	for _, err := range []error{
		acc.AddAsset("g1", a1, m1),
		acc.AddAsset("g1", a2, m2),
		acc.AddTaxonomy("g1", "RC", m1),
		acc.AddTaxonomy("g1", "W", m2),
	} {
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	return acc
}

func TestReadWrite(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	frame, err := structpb.NewStruct(map[string]any{"kind": "test", "n": 3.0})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	if err := w.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := NewReader(&buf)
	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(frame.AsMap(), got.AsMap()); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	if _, err := r.Read(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestParseHeader(t *testing.T) {
	h := Header{Version: config.SpoolVersion, Block: 4, Blocks: 5, Rows: 2, Cols: 3, Assets: 5, Taxonomies: 1}
	got, err := ParseHeader(NewHeaderFrame(h))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if got != h {
		t.Errorf("expected %+v, got %+v", h, got)
	}

	h.Version = config.SpoolVersion + 1
	if _, err := ParseHeader(NewHeaderFrame(h)); !errors.Is(err, errors.ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}

	bad := h
	bad.Version = config.SpoolVersion
	bad.Block = 5
	if _, err := ParseHeader(NewHeaderFrame(bad)); !errors.IsValidation(err) {
		t.Errorf("expected validation error for block outside the run, got %v", err)
	}

	other, _ := structpb.NewStruct(map[string]any{"kind": KindAsset})
	if _, err := ParseHeader(other); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAccumulatorRoundTrip(t *testing.T) {
	acc := testAccumulator(t, 1)

	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteAccumulator(7, 8, acc); err != nil {
		t.Fatalf("WriteAccumulator: %v", err)
	}

	h, got, err := NewReader(&buf).ReadAccumulator()
	if err != nil {
		t.Fatalf("ReadAccumulator: %v", err)
	}
	if h.Block != 7 || h.Blocks != 8 || h.Assets != 2 || h.Taxonomies != 2 {
		t.Errorf("unexpected header %+v", h)
	}

	if diff := cmp.Diff(acc.AssetKeys(), got.AssetKeys()); diff != "" {
		t.Errorf("asset keys mismatch (-want +got):\n%s", diff)
	}
	for _, k := range acc.AssetKeys() {
		want, _ := acc.Asset(k)
		e, ok := got.Asset(k)
		if !ok {
			t.Fatalf("missing asset %v", k)
		}
		if e.Asset != want.Asset {
			t.Errorf("asset mismatch: want %+v, got %+v", want.Asset, e.Asset)
		}
		if !mat.Equal(want.Damages, e.Damages) {
			t.Errorf("damages of %v differ", k)
		}
	}
	for _, k := range acc.TaxonomyKeys() {
		want, _ := acc.Taxonomy(k)
		m, ok := got.Taxonomy(k)
		if !ok || !mat.Equal(want, m) {
			t.Errorf("taxonomy %v differs", k)
		}
	}
}

func TestReadSpool_MergesBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calc.spool")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w := NewWriter(f)
	if err := w.WriteAccumulator(0, 3, testAccumulator(t, 1)); err != nil {
		t.Fatalf("block 0: %v", err)
	}
	if err := w.WriteAccumulator(2, 3, testAccumulator(t, 2)); err != nil {
		t.Fatalf("block 1: %v", err)
	}
	if err := w.WriteAccumulator(1, 3, aggregate.New()); err != nil {
		t.Fatalf("empty block: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	acc, blocks, err := ReadSpool(path)
	if err != nil {
		t.Fatalf("ReadSpool: %v", err)
	}
	if blocks != 3 {
		t.Errorf("expected 3 blocks, got %d", blocks)
	}

	m, ok := acc.Taxonomy(aggregate.TaxonomyKey{GSIM: "g1", Taxonomy: "RC"})
	if !ok {
		t.Fatal("missing RC taxonomy")
	}
	want := mat.NewDense(2, 3, []float64{18, 9, 3, 12, 12, 6})
	if !mat.Equal(want, m) {
		t.Errorf("expected merged RC %v, got %v", mat.Formatted(want), mat.Formatted(m))
	}
}

func TestReadSpool_Missing(t *testing.T) {
	_, _, err := ReadSpool(filepath.Join(t.TempDir(), "missing.spool"))
	if !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReadAccumulator_Truncated(t *testing.T) {
	var buf bytes.Buffer
	h := Header{Version: config.SpoolVersion, Blocks: 1, Rows: 1, Cols: 2, Assets: 1}
	if err := NewWriter(&buf).Write(NewHeaderFrame(h)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, _, err := NewReader(&buf).ReadAccumulator(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadAll_Incomplete(t *testing.T) {
	type block struct{ index, of int }
	tests := []struct {
		name   string
		blocks []block
		want   error
	}{
		{"empty stream", nil, errors.ErrIncomplete},
		{"missing block", []block{{1, 2}}, errors.ErrIncomplete},
		{"duplicate block", []block{{0, 2}, {0, 2}}, errors.ErrDuplicate},
		{"inconsistent run size", []block{{0, 2}, {1, 3}}, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			for _, b := range tt.blocks {
				if err := w.WriteAccumulator(b.index, b.of, testAccumulator(t, 1)); err != nil {
					t.Fatalf("WriteAccumulator: %v", err)
				}
			}
			if _, _, err := NewReader(&buf).ReadAll(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
