package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// Stage inspects a request. It returns the request to pass on, which may
// carry a new context or body, or a rejection.
type Stage func(*http.Request) (*http.Request, *Rejection)

// Rejection is a terminal gate outcome.
type Rejection struct {
	Status     int
	Code       goSession.ErrorKind
	Message    string
	RetryAfter time.Duration
	Header     http.Header
}

func (r *Rejection) Error() string {
	return string(r.Code)
}

// Reject maps err onto the client error taxonomy.
func Reject(err error) *Rejection {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej
	}
	kind := goSession.KindOf(err)
	return &Rejection{
		Status:  goSession.StatusOf(kind),
		Code:    kind,
		Message: goSession.MessageOf(kind),
	}
}

type rejectionBody struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// WriteRejection writes rej as JSON.
func WriteRejection(w http.ResponseWriter, rej *Rejection) {
	h := w.Header()
	for k, vals := range rej.Header {
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	body := rejectionBody{Error: rej.Message, Code: string(rej.Code)}
	if rej.RetryAfter > 0 {
		secs := int(math.Ceil(rej.RetryAfter.Seconds()))
		h.Set("Retry-After", strconv.Itoa(secs))
		body.RetryAfter = secs
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(rej.Status)
	_ = json.NewEncoder(w).Encode(body)
}

type headerBagKey struct{}

// SetResponseHeader queues a header for the response if the whole gate
// passes. Outside a gate it is a no-op.
func SetResponseHeader(r *http.Request, key, value string) {
	if h, ok := r.Context().Value(headerBagKey{}).(http.Header); ok {
		h.Set(key, value)
	}
}

// Gate runs stages in order before next.
func Gate(stages ...Stage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bag := http.Header{}
			if parent, ok := r.Context().Value(headerBagKey{}).(http.Header); ok {
				bag = parent
			} else {
				r = r.WithContext(context.WithValue(r.Context(), headerBagKey{}, bag))
			}

			for _, stage := range stages {
				nr, rej := stage(r)
				if rej != nil {
					WriteRejection(w, rej)
					return
				}
				if nr != nil {
					r = nr
				}
			}

			h := w.Header()
			for k, vals := range bag {
				h[k] = vals
			}
			next.ServeHTTP(w, r)
		})
	}
}
