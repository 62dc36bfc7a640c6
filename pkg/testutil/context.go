package testutil

import (
	"net/http"

	"rrfiler/pkg/platform/middleware/metadata"
)

// AsOperator sets the header the metadata middleware records as the actor.
func AsOperator(req *http.Request, operator string) *http.Request {
	req.Header.Set(metadata.OperatorHeader, operator)
	return req
}
