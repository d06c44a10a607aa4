// Package logs reads the daemon log for `reelforge logs`.
//
// Last returns the trailing lines of a file with bounded memory, and Follow
// polls for appended lines until its context ends. Follow restarts from the
// top when the file shrinks, which happens when a new daemon run repoints
// reelforged.log at a fresh file.
package logs
