package models

import "time"

// InvoiceStatus is the payment state of an invoice
type InvoiceStatus string

const (
	StatusPaid          InvoiceStatus = "Paid"
	StatusUnpaid        InvoiceStatus = "Unpaid"
	StatusPartiallyPaid InvoiceStatus = "Partially Paid"
	StatusOverdue       InvoiceStatus = "Overdue"
)

// ValidStatus checks if a status string is valid
func ValidStatus(s string) bool {
	switch InvoiceStatus(s) {
	case StatusPaid, StatusUnpaid, StatusPartiallyPaid, StatusOverdue:
		return true
	}
	return false
}

// Invoice is a bill issued to a patient
type Invoice struct {
	ID          string        `json:"id"`
	Number      string        `json:"number"`
	PatientID   string        `json:"patientId"`
	PatientName string        `json:"patientName,omitempty"`
	TreatmentID string        `json:"treatmentId,omitempty"`
	Date        time.Time     `json:"date"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
	Status      InvoiceStatus `json:"status"`
	Notes       string        `json:"notes,omitempty"`
	Items       []LineItem    `json:"items"`
	TotalAmount float64       `json:"totalAmount"`
	AmountPaid  float64       `json:"amountPaid"`
	Payments    []Payment     `json:"payments,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Balance returns the amount still owed
func (inv *Invoice) Balance() float64 {
	b := inv.TotalAmount - inv.AmountPaid
	if b < 0 {
		return 0
	}
	return b
}

// LineItem is a single billed service
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
}

// Payment records money received against an invoice
type Payment struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"` // cash, card, transfer, insurance
	Reference string    `json:"reference,omitempty"`
	Date      time.Time `json:"date"`
}

// CreateInvoiceRequest is the body of POST /api/invoices
type CreateInvoiceRequest struct {
	Number      string        `json:"number"`
	PatientID   string        `json:"patientId"`
	TreatmentID string        `json:"treatmentId,omitempty"`
	Date        *time.Time    `json:"date,omitempty"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
	Status      InvoiceStatus `json:"status,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Items       []LineItem    `json:"items"`
}

// UpdateInvoiceRequest is the body of PATCH /api/invoices/{id}
type UpdateInvoiceRequest struct {
	Status *InvoiceStatus `json:"status,omitempty"`
	Notes  *string        `json:"notes,omitempty"`
}

// PaymentRequest is the body of POST /api/invoices/{id}/payments
type PaymentRequest struct {
	Amount    float64 `json:"amount"`
	Method    string  `json:"method,omitempty"`
	Reference string  `json:"reference,omitempty"`
}

// InvoiceSummary aggregates the billing dashboard figures
type InvoiceSummary struct {
	Count       int                   `json:"count"`
	Billed      float64               `json:"billed"`
	Collected   float64               `json:"collected"`
	Outstanding float64               `json:"outstanding"`
	ByStatus    map[InvoiceStatus]int `json:"byStatus"`
}
