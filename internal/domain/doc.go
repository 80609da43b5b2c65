// Package domain defines the core pipeline types and cross-cutting contracts.
//
// Concept-oriented files (submission.go, delta.go, alert.go, stores.go, ...) hold
// shared model types and the interfaces implemented by the store backends.
// No implementation code lives here; keeping contracts on the consumer side
// prevents circular imports between the pipeline stages.
package domain
