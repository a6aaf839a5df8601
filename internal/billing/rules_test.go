package billing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"dentaldesk/internal/models"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestInvoice(t *testing.T, total float64) *models.Invoice {
	t.Helper()
	inv, err := NewInvoice(models.CreateInvoiceRequest{
		Number:    "INV-2025-0001",
		PatientID: "p1",
		Items:     []models.LineItem{{Description: "Crown", Quantity: 1, UnitPrice: total}},
	}, &models.Patient{ID: "p1", FirstName: "Ana", LastName: "Silva"}, sequentialIDs(), testNow)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	return inv
}

func TestDeriveStatus(t *testing.T) {
	past := testNow.Add(-24 * time.Hour)
	future := testNow.Add(24 * time.Hour)

	tests := []struct {
		name  string
		total float64
		paid  float64
		due   *time.Time
		want  models.InvoiceStatus
	}{
		{"nothing paid", 100, 0, nil, models.StatusUnpaid},
		{"nothing paid, not due", 100, 0, &future, models.StatusUnpaid},
		{"nothing paid, past due", 100, 0, &past, models.StatusOverdue},
		{"partial", 100, 40, &past, models.StatusPartiallyPaid},
		{"settled", 100, 100, &past, models.StatusPaid},
		{"zero total", 0, 0, nil, models.StatusUnpaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.total, tt.paid, tt.due, testNow); got != tt.want {
				t.Errorf("DeriveStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewInvoice_ComputesTotals(t *testing.T) {
	inv, err := NewInvoice(models.CreateInvoiceRequest{
		PatientID: "p1",
		Items: []models.LineItem{
			{Description: "Cleaning", Quantity: 2, UnitPrice: 45.5},
			{Description: "X-ray", UnitPrice: 30},
		},
	}, nil, sequentialIDs(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if inv.TotalAmount != 121 {
		t.Errorf("total = %v, want 121", inv.TotalAmount)
	}
	if inv.Items[1].Quantity != 1 || inv.Items[1].Amount != 30 {
		t.Errorf("quantity should default to 1: %+v", inv.Items[1])
	}
	if inv.Status != models.StatusUnpaid {
		t.Errorf("status = %q", inv.Status)
	}
}

func TestNewInvoice_Validation(t *testing.T) {
	_, err := NewInvoice(models.CreateInvoiceRequest{Items: []models.LineItem{{UnitPrice: 1}}}, nil, sequentialIDs(), testNow)
	if !errors.Is(err, ErrMissingPatient) {
		t.Errorf("expected ErrMissingPatient, got %v", err)
	}
	_, err = NewInvoice(models.CreateInvoiceRequest{PatientID: "p1"}, nil, sequentialIDs(), testNow)
	if !errors.Is(err, ErrNoItems) {
		t.Errorf("expected ErrNoItems, got %v", err)
	}
	_, err = NewInvoice(models.CreateInvoiceRequest{PatientID: "p1", Status: "Void", Items: []models.LineItem{{UnitPrice: 1}}}, nil, sequentialIDs(), testNow)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestNewInvoice_PaidStatusSettlesTotal(t *testing.T) {
	inv, err := NewInvoice(models.CreateInvoiceRequest{
		PatientID: "p1",
		Status:    models.StatusPaid,
		Items:     []models.LineItem{{Description: "Filling", UnitPrice: 180}},
	}, nil, sequentialIDs(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Status != models.StatusPaid || inv.AmountPaid != 180 || len(inv.Payments) != 1 {
		t.Errorf("unexpected invoice: status=%q paid=%v payments=%d", inv.Status, inv.AmountPaid, len(inv.Payments))
	}
}

func TestRecordPayment_PartialThenFull(t *testing.T) {
	inv := newTestInvoice(t, 1000)

	inv, err := RecordPayment(inv, 600, "card", "", "pay-1", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Status != models.StatusPartiallyPaid || inv.AmountPaid != 600 {
		t.Fatalf("after first payment: status=%q paid=%v", inv.Status, inv.AmountPaid)
	}

	inv, err = RecordPayment(inv, 400, "", "", "pay-2", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Status != models.StatusPaid || inv.AmountPaid != 1000 {
		t.Fatalf("after second payment: status=%q paid=%v", inv.Status, inv.AmountPaid)
	}
	if inv.Payments[1].Method != "cash" {
		t.Errorf("default method = %q, want cash", inv.Payments[1].Method)
	}
}

func TestRecordPayment_DoesNotMutateInput(t *testing.T) {
	inv := newTestInvoice(t, 200)
	if _, err := RecordPayment(inv, 50, "cash", "", "pay-1", testNow); err != nil {
		t.Fatal(err)
	}
	if inv.AmountPaid != 0 || len(inv.Payments) != 0 {
		t.Errorf("input invoice was modified: %+v", inv)
	}
}

func TestRecordPayment_Rejects(t *testing.T) {
	inv := newTestInvoice(t, 100)

	if _, err := RecordPayment(inv, 0, "cash", "", "p", testNow); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: %v", err)
	}
	if _, err := RecordPayment(inv, -5, "cash", "", "p", testNow); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount: %v", err)
	}
	if _, err := RecordPayment(inv, 100.01, "cash", "", "p", testNow); !errors.Is(err, ErrOverpayment) {
		t.Errorf("overpayment: %v", err)
	}

	paid, err := RecordPayment(inv, 100, "cash", "", "p", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RecordPayment(paid, 1, "cash", "", "p2", testNow); !errors.Is(err, ErrNothingOwed) {
		t.Errorf("settled invoice: %v", err)
	}
}

func TestApplyInsuranceCredit(t *testing.T) {
	inv := newTestInvoice(t, 500)

	claim := models.InsuranceClaim{ID: "c1", PatientID: "p1", ApprovedAmount: 800, Status: "Approved"}
	out, err := ApplyInsuranceCredit(inv, claim, "pay-1", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if out.AmountPaid != 500 || out.Status != models.StatusPaid {
		t.Errorf("credit should be capped at the balance: paid=%v status=%q", out.AmountPaid, out.Status)
	}
	if p := out.Payments[0]; p.Method != "insurance" || p.Reference != "c1" {
		t.Errorf("payment = %+v", p)
	}

	claim.Status = "submitted"
	if _, err := ApplyInsuranceCredit(inv, claim, "pay-2", testNow); !errors.Is(err, ErrClaimNotApproved) {
		t.Errorf("expected ErrClaimNotApproved, got %v", err)
	}

	claim.Status = "approved"
	claim.PatientID = "p2"
	if _, err := ApplyInsuranceCredit(inv, claim, "pay-3", testNow); !errors.Is(err, ErrClaimPatientMismatch) {
		t.Errorf("expected ErrClaimPatientMismatch, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	inv := newTestInvoice(t, 300)

	paid, err := SetStatus(inv, models.StatusPaid, "pay-1", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if paid.AmountPaid != 300 || paid.Payments[0].Method != "manual" {
		t.Errorf("marking paid should settle the balance: %+v", paid)
	}

	overdue, err := SetStatus(inv, models.StatusOverdue, "pay-2", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if overdue.Status != models.StatusOverdue || overdue.AmountPaid != 0 {
		t.Errorf("overdue = %+v", overdue)
	}

	if _, err := SetStatus(inv, "Cancelled", "pay-3", testNow); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := SetStatus(inv, models.StatusPartiallyPaid, "pay-4", testNow); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("partially paid with nothing paid: expected ErrInvalidStatus, got %v", err)
	}
}

func TestSetStatus_SettledInvoiceStaysPaid(t *testing.T) {
	paid, err := SetStatus(newTestInvoice(t, 300), models.StatusPaid, "pay-1", testNow)
	if err != nil {
		t.Fatal(err)
	}
	for _, status := range []models.InvoiceStatus{models.StatusUnpaid, models.StatusOverdue, models.StatusPartiallyPaid} {
		if _, err := SetStatus(paid, status, "pay-2", testNow); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("%s on a paid invoice: expected ErrInvalidStatus, got %v", status, err)
		}
	}
	again, err := SetStatus(paid, models.StatusPaid, "pay-3", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if again.AmountPaid != 300 || len(again.Payments) != 1 {
		t.Errorf("re-marking paid should not add a payment: %+v", again)
	}
}

func TestFromTreatment(t *testing.T) {
	treatment := models.Treatment{ID: "t1", PatientID: "p1", Procedure: "Root canal", Tooth: "36", Cost: 950, Status: "completed"}

	inv, err := FromTreatment(treatment, nil, "INV-2025-0007", sequentialIDs(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if inv.TreatmentID != "t1" || inv.TotalAmount != 950 || inv.Number != "INV-2025-0007" {
		t.Errorf("invoice = %+v", inv)
	}
	if inv.Items[0].Description != "Root canal (tooth 36)" {
		t.Errorf("description = %q", inv.Items[0].Description)
	}
	if want := testNow.AddDate(0, 0, PaymentDueDays); inv.DueDate == nil || !inv.DueDate.Equal(want) {
		t.Errorf("due date = %v, want %v", inv.DueDate, want)
	}

	treatment.Status = "planned"
	if _, err := FromTreatment(treatment, nil, "INV-2025-0008", sequentialIDs(), testNow); !errors.Is(err, ErrTreatmentNotCompleted) {
		t.Errorf("expected ErrTreatmentNotCompleted, got %v", err)
	}
}

func TestNextNumber(t *testing.T) {
	tests := []struct {
		existing []string
		want     string
	}{
		{nil, "INV-2025-0001"},
		{[]string{"INV-2025-0003", "INV-2025-0011", "INV-2024-0099"}, "INV-2025-0012"},
		{[]string{"custom-7", "INV-2024-0500"}, "INV-2025-0001"},
	}
	for _, tt := range tests {
		if got := NextNumber(tt.existing, testNow); got != tt.want {
			t.Errorf("NextNumber(%v) = %q, want %q", tt.existing, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	a := newTestInvoice(t, 1000)
	b, _ := RecordPayment(newTestInvoice(t, 250), 100, "cash", "", "p", testNow)
	c, _ := RecordPayment(newTestInvoice(t, 50), 50, "cash", "", "p", testNow)

	s := Summarize([]*models.Invoice{a, b, c})
	if s.Count != 3 || s.Billed != 1300 || s.Collected != 150 || s.Outstanding != 1150 {
		t.Errorf("summary = %+v", s)
	}
	if s.ByStatus[models.StatusUnpaid] != 1 || s.ByStatus[models.StatusPartiallyPaid] != 1 || s.ByStatus[models.StatusPaid] != 1 {
		t.Errorf("by status = %v", s.ByStatus)
	}
}

func TestMarkOverdue(t *testing.T) {
	past := testNow.Add(-time.Hour)
	due := newTestInvoice(t, 100)
	due.DueDate = &past
	notDue := newTestInvoice(t, 100)
	partial, _ := RecordPayment(due, 10, "cash", "", "p", testNow)

	changed := MarkOverdue([]*models.Invoice{due, notDue, partial}, testNow)
	if len(changed) != 1 {
		t.Fatalf("changed = %d, want 1", len(changed))
	}
	if changed[0].Status != models.StatusOverdue {
		t.Errorf("status = %q", changed[0].Status)
	}
	if due.Status == models.StatusOverdue {
		t.Error("input invoice should not be modified")
	}
}
