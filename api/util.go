package api

import (
	"errors"
	"net/http"

	"portwarden/scanner"
)

// errorResponse maps an engine error onto an HTTP status and payload.
func errorResponse(err error) (int, ErrorResponse) {
	var verr *scanner.ValidationError
	if errors.As(err, &verr) {
		status := http.StatusBadRequest
		if verr.Kind == scanner.KindForbiddenTarget {
			status = http.StatusForbidden
		}
		return status, ErrorResponse{Error: verr.Message, Kind: string(verr.Kind)}
	}

	var internal *scanner.ScanInternalError
	if errors.As(err, &internal) {
		return http.StatusInternalServerError, ErrorResponse{Error: "scan failed", Kind: "ScanInternalError"}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
}
