// Package helper provides test doubles for the circulation observability
// interfaces: a slog handler spy for asserting on log output and a metrics
// collector spy for asserting on recorded metrics.
package helper
