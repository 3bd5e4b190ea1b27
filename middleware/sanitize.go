package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/internal/screen"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 10 << 10

// Sanitize bounds the body to maxBytes, then HTML-escapes every string in
// JSON bodies and query values. Values under password, token and code keys
// are left alone. The unescaped input is kept in the context for Screen and
// CSRF.
func Sanitize(maxBytes int64) Stage {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(r *http.Request) (*http.Request, *Rejection) {
		if r.ContentLength > maxBytes {
			return nil, Reject(goSession.ErrPayloadTooLarge)
		}

		r = r.Clone(r.Context())
		raw := &RawInput{Query: r.URL.Query()}
		if len(raw.Query) > 0 {
			r.URL.RawQuery = screen.SanitizeQuery(raw.Query).Encode()
		}

		if r.Body != nil && r.Body != http.NoBody && isJSON(r) {
			data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
			_ = r.Body.Close()
			if err != nil {
				return nil, Reject(goSession.ErrInvalidInput)
			}
			if int64(len(data)) > maxBytes {
				return nil, Reject(goSession.ErrPayloadTooLarge)
			}

			if len(bytes.TrimSpace(data)) > 0 {
				v, err := decodeJSON(data)
				if err != nil {
					logging.FromContext(r.Context()).Debug("rejected malformed json body", "error", err)
					return nil, Reject(goSession.ErrInvalidInput)
				}
				raw.Body = v
				switch v.(type) {
				case map[string]any, []any:
					if data, err = encodeJSON(screen.Sanitize(v)); err != nil {
						return nil, Reject(err)
					}
				}
			}

			r.Body = io.NopCloser(bytes.NewReader(data))
			r.ContentLength = int64(len(data))
			r.Header.Set("Content-Length", strconv.Itoa(len(data)))
		}

		return r.WithContext(withRawInput(r.Context(), raw)), nil
	}
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json"
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after json value")
	}
	return v, nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Screen rejects input that matches SQL injection patterns or carries
// document-query operator keys. It inspects the raw input Sanitize kept, so
// escaped entities never trip the patterns.
func Screen(sql, nosql bool) Stage {
	return func(r *http.Request) (*http.Request, *Rejection) {
		var body any
		query := r.URL.Query()
		if raw, ok := RawInputFromContext(r.Context()); ok {
			body, query = raw.Body, raw.Query
		}

		reason := ""
		switch {
		case sql && (screen.HasSQL(body) || screen.QueryHasSQL(query)):
			reason = "sql_pattern"
		case nosql && (screen.HasNoSQLOperator(body) || screen.QueryHasNoSQLOperator(query)):
			reason = "nosql_operator"
		}
		if reason != "" {
			logging.FromContext(r.Context()).Warn("input screening rejected request",
				"reason", reason,
				"ip", clientIP(r),
			)
			return nil, Reject(goSession.ErrInvalidInput)
		}
		return r, nil
	}
}
