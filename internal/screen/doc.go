// Package screen escapes and inspects decoded request input.
//
// Values are the shapes encoding/json produces: map[string]any, []any,
// string, float64, bool and nil. Query strings are handled as url.Values;
// bracketed keys such as filter[$ne] are split into path segments so
// operator keys are found there too.
//
// # What this package must NOT do
//
//   - Read or rewrite the request. The middleware package owns that.
package screen
