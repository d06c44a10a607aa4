// Package scene models the declarative scene descriptor and derives the set of
// assets a descriptor requires.
//
// Descriptors arrive as JSON or YAML. Parse rejects unknown fields and
// malformed shapes up front and applies every default exactly once, so later
// stages never see an optional value. Scene order is preserved verbatim: it is
// both the visual concatenation order and the narration playback order.
package scene
