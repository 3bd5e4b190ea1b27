package screen

import (
	"net/url"
	"regexp"
	"strings"
)

var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(%27)|(')|(--)|(%23)|(#)`),
	regexp.MustCompile(`(?i)((%3D)|(=))[^\n]*((%27)|(')|(--)|(%3B)|(;))`),
	regexp.MustCompile(`(?i)\w*((%27)|('))((%6F)|o|(%4F))((%72)|r|(%52))`),
	regexp.MustCompile(`(?i)((%27)|('))union`),
	regexp.MustCompile(`(?i)exec(\s|\+)+(s|x)p\w+`),
}

// NoSQLOperators are the document-query operators rejected as keys.
var NoSQLOperators = map[string]struct{}{
	"$where": {}, "$gt": {}, "$lt": {}, "$ne": {}, "$in": {},
	"$nin": {}, "$or": {}, "$and": {}, "$not": {}, "$regex": {},
}

// MatchSQL reports whether s matches any injection pattern.
func MatchSQL(s string) bool {
	for _, p := range sqlPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// HasSQL reports whether any string inside v matches an injection pattern.
// Keys are not inspected.
func HasSQL(v any) bool {
	switch t := v.(type) {
	case string:
		return MatchSQL(t)
	case map[string]any:
		for _, val := range t {
			if HasSQL(val) {
				return true
			}
		}
	case []any:
		for _, val := range t {
			if HasSQL(val) {
				return true
			}
		}
	}
	return false
}

// HasNoSQLOperator reports whether any object key inside v, at any depth,
// is a document-query operator.
func HasNoSQLOperator(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if _, bad := NoSQLOperators[k]; bad {
				return true
			}
			if HasNoSQLOperator(val) {
				return true
			}
		}
	case []any:
		for _, val := range t {
			if HasNoSQLOperator(val) {
				return true
			}
		}
	}
	return false
}

// QueryHasSQL applies MatchSQL to every query value.
func QueryHasSQL(q url.Values) bool {
	for _, vals := range q {
		for _, v := range vals {
			if MatchSQL(v) {
				return true
			}
		}
	}
	return false
}

// QueryHasNoSQLOperator looks for operators in query keys, including
// bracketed segments such as user[$ne].
func QueryHasNoSQLOperator(q url.Values) bool {
	for k := range q {
		for _, seg := range keySegments(k) {
			if _, bad := NoSQLOperators[seg]; bad {
				return true
			}
		}
	}
	return false
}

func keySegments(k string) []string {
	return strings.FieldsFunc(k, func(r rune) bool {
		return r == '[' || r == ']' || r == '.'
	})
}
