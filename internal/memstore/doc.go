// Package memstore implements every store contract in process memory for
// single-instance mode. Delta writes are copy-on-write behind striped
// per-target locks: readers always see a fully applied ledger, and
// targets never contend with each other.
package memstore
