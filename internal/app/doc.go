// Package app provides the application service layer.
//
// It owns the pipeline lifecycle: the periodic aggregation and fusion
// runners, the cycle-event subscriptions feeding alerting and rewards,
// runtime threshold updates, and the export assembly. Sits between HTTP
// handlers and the pipeline components.
package app
