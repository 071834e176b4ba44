// Package parquet reads and writes typed Parquet files.
//
// The package provides:
//   - Writer[T]: a concurrency-safe, append-only writer of rows of type T
//   - Reader[T] and ReadFile[T] for reading rows back
//   - Support for multiple compression algorithms (snappy, zstd, lz4, gzip)
//
// Row types are plain structs with parquet struct tags; the ground-motion
// input and every damage output table are stored this way.
package parquet
