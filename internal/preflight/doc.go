// Package preflight provides readiness checks for the binaries and
// filesystem paths reelforge depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure; missing
//     ffmpeg or an unwritable work directory aborts startup.
//   - The CLI "reelforge deps" command and the /api/status endpoint render
//     the same results for operators.
package preflight
