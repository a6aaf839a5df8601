// Package billing implements invoice rules for the clinic billing dashboard:
// status derivation, payments, insurance credits, invoicing completed
// treatments, numbering and overdue detection.
package billing

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dentaldesk/internal/models"
)

var (
	ErrInvalidAmount         = errors.New("payment amount must be greater than zero")
	ErrOverpayment           = errors.New("payment exceeds the outstanding balance")
	ErrNothingOwed           = errors.New("invoice has no outstanding balance")
	ErrMissingPatient        = errors.New("patient is required")
	ErrNoItems               = errors.New("invoice needs at least one line item")
	ErrInvalidStatus         = errors.New("invalid invoice status")
	ErrClaimNotApproved      = errors.New("insurance claim is not approved")
	ErrClaimPatientMismatch  = errors.New("insurance claim belongs to another patient")
	ErrTreatmentNotCompleted = errors.New("treatment is not completed")
)

// PaymentDueDays is the default payment term for generated invoices
const PaymentDueDays = 30

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// DeriveStatus computes an invoice status from its amounts and due date
func DeriveStatus(total, paid float64, due *time.Time, now time.Time) models.InvoiceStatus {
	switch {
	case total > 0 && paid >= total:
		return models.StatusPaid
	case paid > 0:
		return models.StatusPartiallyPaid
	case due != nil && due.Before(now):
		return models.StatusOverdue
	default:
		return models.StatusUnpaid
	}
}

// computeItems fills in line amounts and returns the invoice total
func computeItems(items []models.LineItem) ([]models.LineItem, float64) {
	out := make([]models.LineItem, len(items))
	total := 0.0
	for i, item := range items {
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		item.Amount = roundCents(item.Quantity * item.UnitPrice)
		total += item.Amount
		out[i] = item
	}
	return out, roundCents(total)
}

// NewInvoice validates a create request and builds the invoice.
// An explicit Paid status settles the full total as a single payment.
func NewInvoice(req models.CreateInvoiceRequest, patient *models.Patient, newID func() string, now time.Time) (*models.Invoice, error) {
	if req.PatientID == "" {
		return nil, ErrMissingPatient
	}
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	if req.Status != "" && !models.ValidStatus(string(req.Status)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	items, total := computeItems(req.Items)
	date := now
	if req.Date != nil {
		date = *req.Date
	}

	inv := &models.Invoice{
		ID:          newID(),
		Number:      req.Number,
		PatientID:   req.PatientID,
		TreatmentID: req.TreatmentID,
		Date:        date,
		DueDate:     req.DueDate,
		Notes:       req.Notes,
		Items:       items,
		TotalAmount: total,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if patient != nil {
		inv.PatientName = patient.FullName()
	}

	if req.Status == models.StatusPaid && total > 0 {
		inv.AmountPaid = total
		inv.Payments = []models.Payment{{ID: newID(), Amount: total, Method: "unspecified", Date: now}}
	}
	inv.Status = DeriveStatus(inv.TotalAmount, inv.AmountPaid, inv.DueDate, now)
	return inv, nil
}

func cloneInvoice(inv *models.Invoice) *models.Invoice {
	c := *inv
	c.Items = append([]models.LineItem(nil), inv.Items...)
	c.Payments = append([]models.Payment(nil), inv.Payments...)
	return &c
}

// RecordPayment returns a copy of inv with the payment applied.
// amountPaid never exceeds totalAmount.
func RecordPayment(inv *models.Invoice, amount float64, method, reference string, paymentID string, now time.Time) (*models.Invoice, error) {
	amount = roundCents(amount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if inv.Balance() <= 0 {
		return nil, ErrNothingOwed
	}
	if roundCents(inv.AmountPaid+amount) > inv.TotalAmount {
		return nil, fmt.Errorf("%w: balance is %.2f", ErrOverpayment, inv.Balance())
	}
	if method == "" {
		method = "cash"
	}

	out := cloneInvoice(inv)
	out.AmountPaid = roundCents(inv.AmountPaid + amount)
	out.Payments = append(out.Payments, models.Payment{
		ID:        paymentID,
		Amount:    amount,
		Method:    method,
		Reference: reference,
		Date:      now,
	})
	out.Status = DeriveStatus(out.TotalAmount, out.AmountPaid, out.DueDate, now)
	out.UpdatedAt = now
	return out, nil
}

// ApplyInsuranceCredit settles as much of the balance as the approved claim covers
func ApplyInsuranceCredit(inv *models.Invoice, claim models.InsuranceClaim, paymentID string, now time.Time) (*models.Invoice, error) {
	if !strings.EqualFold(claim.Status, "approved") {
		return nil, ErrClaimNotApproved
	}
	if claim.PatientID != "" && claim.PatientID != inv.PatientID {
		return nil, ErrClaimPatientMismatch
	}
	if inv.Balance() <= 0 {
		return nil, ErrNothingOwed
	}
	credit := math.Min(claim.ApprovedAmount, inv.Balance())
	if credit <= 0 {
		return nil, ErrInvalidAmount
	}
	return RecordPayment(inv, credit, "insurance", claim.ID, paymentID, now)
}

// SetStatus applies a manual status change. Marking an invoice Paid settles
// the balance. A settled invoice stays Paid, and Partially Paid needs a payment.
func SetStatus(inv *models.Invoice, status models.InvoiceStatus, paymentID string, now time.Time) (*models.Invoice, error) {
	if !models.ValidStatus(string(status)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status == models.StatusPaid && inv.Balance() > 0 {
		return RecordPayment(inv, inv.Balance(), "manual", "", paymentID, now)
	}
	if status != models.StatusPaid && inv.TotalAmount > 0 && inv.Balance() <= 0 {
		return nil, fmt.Errorf("%w: %q on a fully paid invoice", ErrInvalidStatus, status)
	}
	if status == models.StatusPartiallyPaid && inv.AmountPaid <= 0 {
		return nil, fmt.Errorf("%w: %q with nothing paid", ErrInvalidStatus, status)
	}
	out := cloneInvoice(inv)
	out.Status = status
	out.UpdatedAt = now
	return out, nil
}

// FromTreatment builds an invoice for a completed treatment
func FromTreatment(t models.Treatment, patient *models.Patient, number string, newID func() string, now time.Time) (*models.Invoice, error) {
	if !strings.EqualFold(t.Status, "completed") {
		return nil, ErrTreatmentNotCompleted
	}

	description := t.Procedure
	if t.Tooth != "" {
		description = fmt.Sprintf("%s (tooth %s)", t.Procedure, t.Tooth)
	}
	due := now.AddDate(0, 0, PaymentDueDays)

	return NewInvoice(models.CreateInvoiceRequest{
		Number:      number,
		PatientID:   t.PatientID,
		TreatmentID: t.ID,
		DueDate:     &due,
		Notes:       "Generated from treatment " + t.ID,
		Items: []models.LineItem{
			{Description: description, Quantity: 1, UnitPrice: t.Cost},
		},
	}, patient, newID, now)
}

var numberPattern = regexp.MustCompile(`^INV-(\d{4})-(\d+)$`)

// NextNumber returns the next INV-<year>-<seq> number for now's year
func NextNumber(existing []string, now time.Time) string {
	year := now.Year()
	maxSeq := 0
	for _, n := range existing {
		m := numberPattern.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		if y, _ := strconv.Atoi(m[1]); y != year {
			continue
		}
		if seq, _ := strconv.Atoi(m[2]); seq > maxSeq {
			maxSeq = seq
		}
	}
	return fmt.Sprintf("INV-%d-%04d", year, maxSeq+1)
}

// Summarize aggregates totals for the dashboard
func Summarize(invoices []*models.Invoice) models.InvoiceSummary {
	s := models.InvoiceSummary{ByStatus: make(map[models.InvoiceStatus]int)}
	for _, inv := range invoices {
		s.Count++
		s.Billed += inv.TotalAmount
		s.Collected += inv.AmountPaid
		s.ByStatus[inv.Status]++
	}
	s.Billed = roundCents(s.Billed)
	s.Collected = roundCents(s.Collected)
	s.Outstanding = roundCents(s.Billed - s.Collected)
	return s
}

// MarkOverdue returns copies of the invoices that became overdue at now
func MarkOverdue(invoices []*models.Invoice, now time.Time) []*models.Invoice {
	var changed []*models.Invoice
	for _, inv := range invoices {
		if inv.Status == models.StatusOverdue || inv.Status == models.StatusPaid {
			continue
		}
		if DeriveStatus(inv.TotalAmount, inv.AmountPaid, inv.DueDate, now) != models.StatusOverdue {
			continue
		}
		out := cloneInvoice(inv)
		out.Status = models.StatusOverdue
		out.UpdatedAt = now
		changed = append(changed, out)
	}
	return changed
}
