// Package events implements the event data model that flows through the
// archivist: a multi-valued attribute record with set semantics, typed
// read-only views over it, its bus wire encoding, its line-oriented text
// encoding, and a compressed append-only in-memory log with immutable,
// chainable snapshots.
//
// Wire format (bus payload):
//
//	<event xmlns="abusehelper#event">
//	  <attr key="ip" value="192.0.2.1"/>
//	  <attr key="type" value="scan"/>
//	</event>
//
// Text format (archive lines and the in-memory log):
//
//	{"ip":["192.0.2.1"],"type":["scan"]}
//
// An Event is owned by one goroutine at a time; it is not safe for
// concurrent mutation. Snapshots are immutable and may be iterated from
// any number of goroutines.
package events
