// Package pebblestore keeps channel archives in a Pebble database instead of
// plain files.
//
// Every archive line is stored under its own key so that a path behaves like
// an append-only file:
//
//	l\x00<path>\x00<seq>   one archive line, seq is a big-endian uint64
//	s\x00<path>            next seq for path
//
// Lines written through a handle are staged in a batch and committed by
// Flush, which maps the archiver's flush cadence onto Pebble commits.
package pebblestore
