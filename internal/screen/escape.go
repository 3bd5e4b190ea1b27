package screen

import (
	"net/url"
	"strings"
)

// SkipFields are object keys whose values are never escaped.
var SkipFields = map[string]struct{}{
	"password": {},
	"token":    {},
	"code":     {},
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
	"`", "&#x60;",
	"=", "&#x3D;",
)

// EscapeHTML replaces & < > " ' / ` = with entities.
func EscapeHTML(s string) string {
	return htmlReplacer.Replace(s)
}

// Sanitize returns a copy of v with every string escaped, except values
// held directly under a SkipFields key. Non-string scalars pass through.
func Sanitize(v any) any {
	switch t := v.(type) {
	case string:
		return EscapeHTML(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if _, skip := SkipFields[k]; skip {
				out[k] = val
				continue
			}
			out[k] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Sanitize(val)
		}
		return out
	default:
		return v
	}
}

// SanitizeQuery escapes every query value except those under SkipFields.
func SanitizeQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, vals := range q {
		cp := make([]string, len(vals))
		_, skip := SkipFields[k]
		for i, v := range vals {
			if skip {
				cp[i] = v
			} else {
				cp[i] = EscapeHTML(v)
			}
		}
		out[k] = cp
	}
	return out
}
