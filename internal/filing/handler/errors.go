package handler

import (
	"context"
	"errors"
	"net/http"

	"rrfiler/internal/filing/builder"
	"rrfiler/internal/filing/transport"
	id "rrfiler/pkg/domain"
	dErrors "rrfiler/pkg/domain-errors"
	"rrfiler/pkg/platform/httputil"
)

// writeError translates filing errors into coded responses. Sentinels and
// domain errors fall through to httputil.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	mapped := translate(err)
	if de, ok := dErrors.As(mapped); !ok || de.Code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "request failed", "error", err)
	}
	httputil.WriteError(w, mapped)
}

func translate(err error) error {
	var pf *builder.PreflightError
	if errors.As(err, &pf) {
		return dErrors.Wrap(err, dErrors.CodePreflightFailed, "document failed "+string(pf.Stage)+" checks").
			WithDetails(pf.Reasons)
	}

	if errors.Is(err, transport.ErrCircuitOpen) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "transfer host temporarily disabled after repeated failures")
	}
	var te *transport.TransportError
	if errors.As(err, &te) {
		if te.Category == transport.CategoryUnavailable {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "transfer host unavailable")
		}
		return dErrors.Wrap(err, dErrors.CodeTransport, "transfer host "+te.Op+" failed: "+string(te.Category))
	}

	if errors.Is(err, id.ErrInvalidID) {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	}
	return err
}
