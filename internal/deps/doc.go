// Package deps reports whether the external binaries the renderer shells out
// to are installed, and whether the installed ffmpeg carries every filter a
// synthesized graph may reference.
package deps
