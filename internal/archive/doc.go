// Package archive writes per-channel event archives.
//
// An Archiver consumes the events of one channel and appends each of them as
// a line to the archive selected by its PathFunc:
//
//	2010-12-09 15:11:34Z {"a":["1"],"b":["2","3"]}
//
// The timestamp is the UTC wall clock at the time the event was processed.
// Writes are buffered; a ticker flushes channels that have unflushed writes.
// A channel task keeps at most one archive open and only switches archives
// when the path for a new event differs from the current one.
//
// Where lines go is up to the Opener. FileOpener appends to plain files
// below a root directory; the storage/pebble package provides a key-value
// backend with the same line format.
package archive
