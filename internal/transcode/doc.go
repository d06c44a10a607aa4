// Package transcode drives ffmpeg to render a synthesized plan into a single
// MP4 artifact.
//
// The Invoker owns argument construction, subprocess execution through an
// Executor, progress parsing from ffmpeg's -progress stream, and output
// verification. Failures carry a bounded tail of ffmpeg diagnostics and
// never leave a partial artifact behind.
package transcode
