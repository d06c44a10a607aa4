// Package history persists a ledger of projects and assembly attempts in
// SQLite.
//
// The in-memory registry remains the source of truth for live projects. The
// ledger outlives daemon restarts so operators can see what was rendered,
// how long it took, and why failed attempts failed. Schema changes ship as
// numbered files under migrations/ and are applied in order on Open.
package history
