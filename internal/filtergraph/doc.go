// Package filtergraph turns a scene descriptor and resolved asset paths into
// an ffmpeg invocation plan: the ordered input list, a typed filter graph,
// and the stream labels the encoder should map.
//
// Synthesis is a pure function. The graph is assembled as typed nodes and
// rendered to ffmpeg's textual syntax in exactly one place (Graph.String),
// which also enforces label discipline: every consumed label was produced by
// an earlier node, and no label is produced twice.
package filtergraph
