package metadata

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"rrfiler/pkg/requestcontext"
)

// OperatorHeader names the operator driving a request. Authentication is
// handled upstream; the value is only recorded in audit events.
const OperatorHeader = "X-Operator"

const maxOperatorLen = 128

// RequestMetadata copies the chi request id and the operator header into the
// request context for services. Mount after chi's RequestID middleware.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reqID := chimw.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
			w.Header().Set(chimw.RequestIDHeader, reqID)
		}
		if operator := sanitizeOperator(r.Header.Get(OperatorHeader)); operator != "" {
			ctx = requestcontext.WithActor(ctx, operator)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sanitizeOperator(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
	if len(value) > maxOperatorLen {
		value = value[:maxOperatorLen]
	}
	return value
}
