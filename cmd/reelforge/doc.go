// Package main hosts the reelforge CLI.
//
// The command tree runs the composition daemon, renders descriptors in
// process without a daemon, and drives a running daemon over its HTTP API
// (project create, upload, assemble, download). It also reads the daemon log
// and history ledger directly from disk. Configuration resolution and
// API client setup live in the command context so subcommands only deal with
// presentation.
package main
