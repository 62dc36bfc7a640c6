package metadata

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"rrfiler/pkg/requestcontext"
)

func TestRequestMetadata(t *testing.T) {
	var gotRequestID, gotActor string
	h := chimw.RequestID(RequestMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = requestcontext.RequestID(r.Context())
		gotActor = requestcontext.Actor(r.Context())
	})))

	req := httptest.NewRequest(http.MethodPost, "/filings/rec-1/submit", nil)
	req.Header.Set(OperatorHeader, "  jane.ops\x00 ")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, gotRequestID, rr.Header().Get(chimw.RequestIDHeader))
	assert.Equal(t, "jane.ops", gotActor)
}

func TestSanitizeOperator_Truncates(t *testing.T) {
	assert.Len(t, sanitizeOperator(strings.Repeat("a", 300)), maxOperatorLen)
	assert.Empty(t, sanitizeOperator("   "))
}
