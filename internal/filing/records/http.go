package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
	"rrfiler/pkg/platform/sentinel"
)

const maxRecordBytes = 4 << 20

// HTTPSource fetches records as JSON from GET {base}/records/{id}.
type HTTPSource struct {
	base   string
	client *http.Client
}

type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = c
	}
}

func NewHTTP(baseURL string, timeout time.Duration, opts ...HTTPOption) (*HTTPSource, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("record source url: %w", err)
	}
	s := &HTTPSource{
		base: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *HTTPSource) Get(ctx context.Context, recordID id.RecordID) (*models.TransactionRecord, error) {
	endpoint := s.base + "/records/" + url.PathEscape(string(recordID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build record request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch record %s: %w: %v", recordID, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("record %s: %w", recordID, sentinel.ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("fetch record %s: status %d: %w", recordID, resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch record %s: unexpected status %d", recordID, resp.StatusCode)
	}

	var rec models.TransactionRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRecordBytes)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", recordID, err)
	}
	if rec.ID == "" {
		rec.ID = recordID
	}
	if rec.ID != recordID {
		return nil, fmt.Errorf("record source returned %s for %s", rec.ID, recordID)
	}
	return &rec, nil
}
