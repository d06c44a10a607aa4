// Package ffprobe inspects media files with the ffprobe binary.
//
// A Prober decodes ffprobe's JSON report into Result. The transcode invoker
// uses VerifyVideo to reject outputs with no decodable video, and the render
// command probes source assets to warn when narration outlasts its scene.
package ffprobe
