package api

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"

	"dentaldesk/internal/billing"
	"dentaldesk/internal/log"
	"dentaldesk/internal/models"
)

// =============================================================================
// Invoice Handlers
// =============================================================================

// listInvoicesHandler returns all invoices, newest first
func (s *Server) listInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.billing.ListInvoices(r.Context(), s.getTenant(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if invoices == nil {
		invoices = []*models.Invoice{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invoices": invoices,
	})
}

// createInvoiceHandler creates an invoice
func (s *Server) createInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := s.billing.CreateInvoice(r.Context(), s.getTenant(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"invoice": inv,
	})
}

// invoiceSummaryHandler returns the dashboard totals
func (s *Server) invoiceSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.billing.Summary(r.Context(), s.getTenant(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// invoiceFromTreatmentHandler invoices a completed treatment
func (s *Server) invoiceFromTreatmentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TreatmentID string `json:"treatmentId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TreatmentID == "" {
		writeError(w, http.StatusBadRequest, "missing_treatment", "treatmentId is required")
		return
	}

	inv, err := s.billing.CreateFromTreatment(r.Context(), s.getTenant(r), req.TreatmentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"invoice": inv,
	})
}

// getInvoiceHandler returns one invoice
func (s *Server) getInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	inv, err := s.billing.GetInvoice(r.Context(), s.getTenant(r), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invoice": inv,
	})
}

// updateInvoiceHandler changes status and/or notes and returns the updated invoice
func (s *Server) updateInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := s.billing.UpdateInvoice(r.Context(), s.getTenant(r), mux.Vars(r)["id"], req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// deleteInvoiceHandler deletes an invoice
func (s *Server) deleteInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.billing.DeleteInvoice(r.Context(), s.getTenant(r), id); err != nil {
		writeServiceError(w, err)
		return
	}
	log.Debug("Deleted invoice %s", id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// recordPaymentHandler records a payment against an invoice
func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := s.billing.RecordPayment(r.Context(), s.getTenant(r), mux.Vars(r)["id"], req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invoice": inv,
	})
}

// insuranceCreditHandler applies an approved insurance claim to an invoice
func (s *Server) insuranceCreditHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClaimID string `json:"claimId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClaimID == "" {
		writeError(w, http.StatusBadRequest, "missing_claim", "claimId is required")
		return
	}

	inv, err := s.billing.ApplyInsuranceCredit(r.Context(), s.getTenant(r), mux.Vars(r)["id"], req.ClaimID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invoice": inv,
	})
}

// printInvoiceHandler renders a printable HTML invoice
func (s *Server) printInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	inv, err := s.billing.GetInvoice(r.Context(), s.getTenant(r), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := billing.RenderPrintable(&buf, inv, s.clinicName()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// Clinic Handlers
// =============================================================================

// listPatientsHandler returns all patients
func (s *Server) listPatientsHandler(w http.ResponseWriter, r *http.Request) {
	patients, err := s.billing.ListPatients(r.Context(), s.getTenant(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patients": patients,
	})
}

// createPatientHandler registers a patient
func (s *Server) createPatientHandler(w http.ResponseWriter, r *http.Request) {
	var p models.Patient
	if !decodeJSON(w, r, &p) {
		return
	}

	created, err := s.billing.CreatePatient(r.Context(), s.getTenant(r), p)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"patient": created,
	})
}

// listTreatmentsHandler returns treatments from the legacy store
func (s *Server) listTreatmentsHandler(w http.ResponseWriter, r *http.Request) {
	treatments, err := s.billing.ListTreatments(r.Context(), s.getTenant(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"treatments": treatments,
	})
}

// listAppointmentsHandler returns appointments from the legacy store
func (s *Server) listAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	appointments, err := s.billing.ListAppointments(r.Context(), s.getTenant(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
	})
}

// listInsuranceClaimsHandler returns insurance claims from the legacy store
func (s *Server) listInsuranceClaimsHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := s.billing.ListInsuranceClaims(r.Context(), s.getTenant(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claims": claims,
	})
}
