// Package parquet implements Parquet file access for the sales dataset.
//
// The package provides:
//   - TransactionReader: a columnar reader that prunes row groups from page
//     statistics and reads only the projected columns
//   - Store mapping table reading in long and wide layout
//   - TransactionWriter/MappingWriter used to produce datasets and fixtures
//   - Support for multiple compression algorithms (snappy, zstd, lz4, gzip)
package parquet
