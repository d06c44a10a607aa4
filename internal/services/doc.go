// Package services defines the error markers and context helpers shared by the
// composition pipeline.
//
// Every package-level sentinel in reelforge wraps one of the markers below so
// the HTTP layer and the CLI can classify failures with errors.Is without
// knowing which package produced them. Context helpers stamp project and
// correlation identifiers that the logging package lifts into log fields.
package services
