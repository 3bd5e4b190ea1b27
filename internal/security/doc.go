// Package security derives a posture report from an engine configuration:
// the effective protections plus findings for settings that weaken them.
//
// # What this package must NOT do
//
//   - Read secrets. The report input carries only shapes and flags.
package security
