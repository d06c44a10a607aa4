// Package api defines wire-format types and converters for the HTTP API and
// the CLI client. It translates registry, ledger and preflight models into
// transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// ProjectStatus: readiness snapshot with phase, percentage, missing names,
// and live render progress while assembling.
//
// PlanResponse: dry-run synthesis output with ordered inputs, the filter
// graph text, and the exact ffmpeg argument vector.
//
// DaemonStatus: runtime information including dependencies, preflight
// results, and host statistics.
//
// ErrorResponse: structured error body carrying a machine-readable kind.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds, and durations are
// reported in fractional seconds.
package api
