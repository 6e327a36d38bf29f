// Package parquet exports archived events to Parquet files.
//
// Events are flattened to one row per key/value pair. Rows of the same event
// share its record index and write timestamp, so an export can be folded
// back into events with EventReader.Entries.
package parquet
