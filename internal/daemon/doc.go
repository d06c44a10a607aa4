// Package daemon hosts the long-running reelforge service: the HTTP API over
// the project registry, the scheduled sweeper that evicts abandoned projects,
// and the single-instance lock.
//
// Run acquires the lock, repairs ledger rows left running by a previous
// process, and then serves until the context is cancelled. Assemblies are
// detached from the request that started them so a dropped client does not
// abort a render; they are still cancelled when the daemon stops.
package daemon
