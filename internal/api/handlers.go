package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"dentaldesk/internal/billing"
	"dentaldesk/internal/builder"
	"dentaldesk/internal/log"
	"dentaldesk/internal/models"
)

// maxBodySize caps JSON request bodies
const maxBodySize = 4 << 20

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:   err,
		Message: message,
		Code:    status,
	})
}

// decodeJSON reads a JSON request body into v, writing a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_json", "Request body is required")
		} else {
			writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		}
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP responses
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrInvoiceNotFound),
		errors.Is(err, billing.ErrTreatmentNotFound),
		errors.Is(err, billing.ErrClaimNotFound),
		errors.Is(err, builder.ErrWidgetNotFound),
		errors.Is(err, builder.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, builder.ErrSaveInProgress):
		writeError(w, http.StatusConflict, "save_in_progress", err.Error())

	case errors.Is(err, billing.ErrInvalidAmount),
		errors.Is(err, billing.ErrOverpayment),
		errors.Is(err, billing.ErrNothingOwed),
		errors.Is(err, billing.ErrMissingPatient),
		errors.Is(err, billing.ErrNoItems),
		errors.Is(err, billing.ErrPatientName),
		errors.Is(err, billing.ErrInvalidStatus),
		errors.Is(err, billing.ErrClaimNotApproved),
		errors.Is(err, billing.ErrClaimPatientMismatch),
		errors.Is(err, billing.ErrTreatmentNotCompleted):
		writeError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())

	case errors.Is(err, builder.ErrUnknownType),
		errors.Is(err, builder.ErrDuplicateID),
		errors.Is(err, builder.ErrInvalidWidget),
		errors.Is(err, builder.ErrInvalidMove),
		errors.Is(err, builder.ErrNoDrag):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	default:
		log.Error("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
	}
}
