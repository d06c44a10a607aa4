// Package asset decides whether an uploaded file may satisfy a named slot in a
// scene descriptor.
//
// The allow-list maps file extensions to media categories; a candidate is
// rejected when it is empty, too large, carries an unknown extension, or
// declares a content type whose primary category disagrees with its extension.
// Validation is a pure check. Persisting accepted bytes is the caller's job.
package asset
