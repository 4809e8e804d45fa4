// Package sales wires the weekly sales query engine together.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│   Dataset   │────▶│   Scanner   │────▶│  Aggregate  │
//	│   Locator   │     │ (calendar)  │     │  per year   │
//	└─────────────┘     └─────────────┘     └─────────────┘
//	                                               │
//	                    ┌─────────────┐            ▼
//	                    │    Store    │     ┌─────────────┐
//	                    │   Mapping   │────▶│ Query facade│
//	                    └─────────────┘     └─────────────┘
//
// The engine provides:
//   - Discovery of hive-partitioned Parquet files (key=value directories)
//   - Partition and row-group pruning on store, article, size and quantity
//   - ISO week derivation from YYYYMMDD booking dates
//   - Per-year weekly series for one store or across the store universe
//   - Option lists for the dashboard selectors
//   - A native parquet-go scanner and a DuckDB scanner behind one interface
//   - Prometheus metrics for queries and scans
//
// Reference data (store mapping, store universe, article universe) is loaded
// on first use and kept until Reload.
package sales
