package parquet

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testRow struct {
	AssetID     string  `parquet:"asset_id"`
	DamageState string  `parquet:"damage_state,dict"`
	Mean        float64 `parquet:"mean"`
	Stddev      float64 `parquet:"stddev"`
}

func testRows(n int) []testRow {
	states := []string{"no_damage", "slight", "complete"}
	rows := make([]testRow, n)
	for i := range rows {
		rows[i] = testRow{
			AssetID:     "a" + string(rune('0'+i%10)),
			DamageState: states[i%len(states)],
			Mean:        float64(i),
			Stddev:      float64(i) / 10,
		}
	}
	return rows
}

func TestWriterBasic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "rows.parquet")

	w, err := NewWriter[testRow](path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Write(testRows(3)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.RowCount() != 3 {
		t.Errorf("expected 3 rows, got %d", w.RowCount())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file should exist: %v", err)
	}
	if stat.Size() == 0 {
		t.Error("file should not be empty")
	}
	if w.Path() != path {
		t.Errorf("expected path %s, got %s", path, w.Path())
	}
}

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.parquet")
	want := testRows(25)

	if err := WriteFile(path, want, DefaultOptions()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile[testRow](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.parquet")
	if err := WriteFile(path, testRows(10), DefaultOptions()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := NewReader[testRow](path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if r.NumRows() != 10 {
		t.Errorf("expected 10 rows, got %d", r.NumRows())
	}

	total := 0
	for {
		rows, err := r.Read(4)
		total += len(rows)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if len(rows) == 0 {
			break
		}
	}
	if total != 10 {
		t.Errorf("expected to read 10 rows, got %d", total)
	}
}

func TestLargeWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.parquet")

	opts := DefaultOptions()
	opts.RowGroupSize = 1000

	w, err := NewWriter[testRow](path, opts)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := w.Write(testRows(1000)); err != nil {
			t.Fatalf("Write batch %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows, err := ReadFile[testRow](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 10000 {
		t.Errorf("expected 10000 rows, got %d", len(rows))
	}
}

func TestCompressionTypes(t *testing.T) {
	for _, ct := range []CompressionType{CompressionNone, CompressionSnappy, CompressionZstd, CompressionLZ4, CompressionGzip} {
		t.Run(ct.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.parquet")

			opts := DefaultOptions()
			opts.Compression = ct

			if err := WriteFile(path, testRows(1), opts); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			rows, err := ReadFile[testRow](path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if len(rows) != 1 {
				t.Errorf("expected 1 row, got %d", len(rows))
			}
		})
	}
}

func TestParseCompressionType(t *testing.T) {
	tests := []struct {
		input    string
		expected CompressionType
	}{
		{"snappy", CompressionSnappy},
		{"zstd", CompressionZstd},
		{"lz4", CompressionLZ4},
		{"gzip", CompressionGzip},
		{"none", CompressionNone},
		{"", CompressionNone},
		{"SNAPPY", CompressionSnappy},
		{" None ", CompressionNone},
		{"Gzip", CompressionGzip},
		{"invalid", CompressionZstd}, // Default
	}

	for _, tt := range tests {
		result := ParseCompressionType(tt.input)
		if result != tt.expected {
			t.Errorf("ParseCompressionType(%s): expected %d, got %d", tt.input, tt.expected, result)
		}
	}
}

func TestEmptyWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")

	w, err := NewWriter[testRow](path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(nil); err != nil {
		t.Errorf("empty write should succeed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows, err := ReadFile[testRow](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestWriteToClosedWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.parquet")

	w, err := NewWriter[testRow](path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Close()

	if err := w.Write(testRows(1)); err != ErrWriterClosed {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
}

func TestGetFileInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.parquet")
	if err := WriteFile(path, testRows(7), DefaultOptions()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := GetFileInfo(path)
	if err != nil {
		t.Fatalf("GetFileInfo: %v", err)
	}
	if info.NumRows != 7 {
		t.Errorf("expected 7 rows, got %d", info.NumRows)
	}
	if info.Size == 0 {
		t.Error("expected non-zero size")
	}
	want := []string{"asset_id", "damage_state", "mean", "stddev"}
	if diff := cmp.Diff(want, info.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}
