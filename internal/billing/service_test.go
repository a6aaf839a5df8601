package billing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dentaldesk/internal/models"
	"dentaldesk/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	svc := NewService(store, nil)
	svc.newID = sequentialIDs()
	svc.now = func() time.Time { return testNow }
	return svc, store
}

func seed(t *testing.T, store storage.Storage, collection, id, body string) {
	t.Helper()
	if _, err := store.Put(context.Background(), "clinic", collection, id, []byte(body)); err != nil {
		t.Fatal(err)
	}
}

func TestService_CreateAndPay(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seed(t, store, storage.CollectionPatients, "p1", `{"id":"p1","firstName":"Ana","lastName":"Silva"}`)

	inv, err := svc.CreateInvoice(ctx, "clinic", models.CreateInvoiceRequest{
		PatientID: "p1",
		Items:     []models.LineItem{{Description: "Implant", UnitPrice: 1000}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if inv.Number != "INV-2025-0001" || inv.PatientName != "Ana Silva" {
		t.Errorf("invoice = %+v", inv)
	}

	if _, err := svc.RecordPayment(ctx, "clinic", inv.ID, models.PaymentRequest{Amount: 600}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.RecordPayment(ctx, "clinic", inv.ID, models.PaymentRequest{Amount: 400})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPaid {
		t.Errorf("status = %q, want Paid", got.Status)
	}

	stored, err := svc.GetInvoice(ctx, "clinic", inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.AmountPaid != 1000 || len(stored.Payments) != 2 {
		t.Errorf("stored = %+v", stored)
	}

	second, err := svc.CreateInvoice(ctx, "clinic", models.CreateInvoiceRequest{
		PatientID: "p1",
		Items:     []models.LineItem{{Description: "Check-up", UnitPrice: 60}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.Number != "INV-2025-0002" {
		t.Errorf("second number = %q", second.Number)
	}
}

func TestService_MissingInvoice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.GetInvoice(ctx, "clinic", "nope"); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("get: %v", err)
	}
	if err := svc.DeleteInvoice(ctx, "clinic", "nope"); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("delete: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, "clinic", "nope", models.PaymentRequest{Amount: 1}); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("pay: %v", err)
	}
}

func TestService_UpdateInvoice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, "clinic", models.CreateInvoiceRequest{
		PatientID: "p9",
		Items:     []models.LineItem{{Description: "Whitening", UnitPrice: 220}},
	})
	if err != nil {
		t.Fatal(err)
	}

	notes := "Paid at front desk"
	status := models.StatusPaid
	got, err := svc.UpdateInvoice(ctx, "clinic", inv.ID, models.UpdateInvoiceRequest{Status: &status, Notes: &notes})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPaid || got.AmountPaid != 220 || got.Notes != notes {
		t.Errorf("updated = %+v", got)
	}
}

func TestService_CreateFromTreatmentAndCredit(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seed(t, store, storage.CollectionTreatments, "t1", `{"patientId":"p1","procedure":"Crown","tooth":"11","cost":700,"status":"completed"}`)
	seed(t, store, storage.CollectionTreatments, "t2", `{"patientId":"p1","procedure":"Bridge","cost":1500,"status":"planned"}`)
	seed(t, store, storage.CollectionInsuranceClaims, "c1", `{"patientId":"p1","treatmentId":"t1","provider":"Delta","claimedAmount":700,"approvedAmount":450,"status":"approved"}`)

	inv, err := svc.CreateFromTreatment(ctx, "clinic", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if inv.TotalAmount != 700 || inv.TreatmentID != "t1" {
		t.Errorf("invoice = %+v", inv)
	}

	if _, err := svc.CreateFromTreatment(ctx, "clinic", "t2"); !errors.Is(err, ErrTreatmentNotCompleted) {
		t.Errorf("planned treatment: %v", err)
	}
	if _, err := svc.CreateFromTreatment(ctx, "clinic", "t404"); !errors.Is(err, ErrTreatmentNotFound) {
		t.Errorf("missing treatment: %v", err)
	}

	credited, err := svc.ApplyInsuranceCredit(ctx, "clinic", inv.ID, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if credited.AmountPaid != 450 || credited.Status != models.StatusPartiallyPaid {
		t.Errorf("credited = %+v", credited)
	}
	if _, err := svc.ApplyInsuranceCredit(ctx, "clinic", inv.ID, "c404"); !errors.Is(err, ErrClaimNotFound) {
		t.Errorf("missing claim: %v", err)
	}
}

func TestService_SweepOverdueAndSummary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	past := testNow.AddDate(0, 0, -3)
	if _, err := svc.CreateInvoice(ctx, "clinic", models.CreateInvoiceRequest{
		PatientID: "p1",
		Items:     []models.LineItem{{Description: "Cleaning", UnitPrice: 90}},
	}); err != nil {
		t.Fatal(err)
	}
	late, err := svc.CreateInvoice(ctx, "clinic", models.CreateInvoiceRequest{
		PatientID: "p2",
		Items:     []models.LineItem{{Description: "Extraction", UnitPrice: 150}},
	})
	if err != nil {
		t.Fatal(err)
	}
	// created before its due date passed
	if late.Status != models.StatusUnpaid {
		t.Fatalf("status = %q", late.Status)
	}
	late.DueDate = &past
	if err := svc.putInvoice(ctx, "clinic", late); err != nil {
		t.Fatal(err)
	}

	n, err := svc.SweepOverdue(ctx, "clinic")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
	if n, _ := svc.SweepOverdue(ctx, "clinic"); n != 0 {
		t.Errorf("second sweep changed %d invoices", n)
	}

	summary, err := svc.Summary(ctx, "clinic")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Count != 2 || summary.Outstanding != 240 || summary.ByStatus[models.StatusOverdue] != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestService_TenantsAreIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateInvoice(ctx, "north", models.CreateInvoiceRequest{
		PatientID: "p1",
		Items:     []models.LineItem{{Description: "Cleaning", UnitPrice: 90}},
	}); err != nil {
		t.Fatal(err)
	}
	invoices, err := svc.ListInvoices(ctx, "south")
	if err != nil {
		t.Fatal(err)
	}
	if len(invoices) != 0 {
		t.Errorf("south sees %d invoices", len(invoices))
	}
}

func TestService_Patients(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreatePatient(ctx, "clinic", models.Patient{}); err == nil {
		t.Error("expected error for nameless patient")
	}
	for _, p := range []models.Patient{{FirstName: "Zoe", LastName: "Adams"}, {FirstName: "Bruno", LastName: "Costa"}} {
		if _, err := svc.CreatePatient(ctx, "clinic", p); err != nil {
			t.Fatal(err)
		}
	}
	patients, err := svc.ListPatients(ctx, "clinic")
	if err != nil {
		t.Fatal(err)
	}
	if len(patients) != 2 || patients[0].FirstName != "Bruno" {
		t.Errorf("patients = %+v", patients)
	}
}

func TestOverdueScheduler(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := NewOverdueScheduler(svc, "not a schedule", nil); err == nil {
		t.Error("expected invalid schedule error")
	}

	sched, err := NewOverdueScheduler(svc, "", []string{"clinic", "north"})
	if err != nil {
		t.Fatal(err)
	}
	if n := sched.RunOnce(context.Background()); n != 0 {
		t.Errorf("RunOnce on empty store = %d", n)
	}
}

func TestRenderPrintable(t *testing.T) {
	inv := newTestInvoice(t, 320)
	inv.Notes = "<script>alert(1)</script>"

	var buf bytes.Buffer
	if err := RenderPrintable(&buf, inv, "Bright Smiles"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Bright Smiles", "INV-2025-0001", "Ana Silva", "$320.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<script>") {
		t.Error("notes should be escaped")
	}
}
