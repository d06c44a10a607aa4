// Package project owns the lifecycle of composition projects.
//
// A Registry maps opaque project ids to entries that hold the descriptor, its
// asset requirements, and the uploaded files. Readiness is derived from the
// asset map on every read and never cached. Each entry has its own mutex;
// the table lock is held only for lookups, inserts, and deletes, so projects
// never contend with one another. Assembly releases the entry lock while
// ffmpeg runs and re-acquires it only to record the outcome.
package project
