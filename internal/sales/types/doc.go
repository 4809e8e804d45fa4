// Package types defines the core data types used throughout the sales query engine.
//
// Key types:
//   - Transaction: A raw sales row as stored in a partition file
//   - ScannedRow: A filtered, narrowed row with its derived calendar week
//   - AggregateRow: Summed quantity for one grouping key
//   - Series: The ordered rows of one year, ready for charting
//   - Filter and Shape: Query predicates and grouping key shape
package types
