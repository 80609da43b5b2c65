// Package postgres is the optional durable archive behind the in-memory
// pipeline state: snapshots, alerts, and reward signals are copied out as
// they are produced, and the processed/acknowledged transitions are
// mirrored. The pipeline never reads the archive back; it exists for
// operators and long-horizon analysis, and archive failures degrade to
// logs and metrics instead of failing the write that produced the record.
package postgres
