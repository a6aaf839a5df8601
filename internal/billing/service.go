package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dentaldesk/internal/log"
	"dentaldesk/internal/models"
	"dentaldesk/internal/storage"
)

var (
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrTreatmentNotFound = errors.New("treatment not found")
	ErrClaimNotFound     = errors.New("insurance claim not found")
	ErrPatientName       = errors.New("patient name is required")
)

// Service persists invoices and patients in a Storage and reads clinic
// records (treatments, appointments, insurance claims) from a LegacyReader.
type Service struct {
	store  storage.Storage
	legacy storage.LegacyReader

	// serializes read-modify-write of invoices
	mu sync.Mutex

	newID func() string
	now   func() time.Time
}

// NewService creates a billing service. A nil legacy reader reads the
// legacy collections from store.
func NewService(store storage.Storage, legacy storage.LegacyReader) *Service {
	if legacy == nil {
		legacy = storage.NewStorageReader(store)
	}
	return &Service{
		store:  store,
		legacy: legacy,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// Invoices
// =============================================================================

// ListInvoices returns all invoices, newest first
func (s *Service) ListInvoices(ctx context.Context, tenant string) ([]*models.Invoice, error) {
	items, err := s.store.List(ctx, tenant, storage.CollectionInvoices)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	invoices := make([]*models.Invoice, 0, len(items))
	for _, item := range items {
		var inv models.Invoice
		if err := json.Unmarshal(item.Content, &inv); err != nil {
			log.Warn("Skipping malformed invoice %s: %v", item.ID, err)
			continue
		}
		invoices = append(invoices, &inv)
	}

	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].Date.After(invoices[j].Date)
	})
	return invoices, nil
}

// GetInvoice loads one invoice
func (s *Service) GetInvoice(ctx context.Context, tenant, id string) (*models.Invoice, error) {
	item, err := s.store.Get(ctx, tenant, storage.CollectionInvoices, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	var inv models.Invoice
	if err := json.Unmarshal(item.Content, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice %s: %w", id, err)
	}
	return &inv, nil
}

func (s *Service) putInvoice(ctx context.Context, tenant string, inv *models.Invoice) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}
	if _, err := s.store.Put(ctx, tenant, storage.CollectionInvoices, inv.ID, data); err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}
	return nil
}

func (s *Service) nextNumber(ctx context.Context, tenant string) (string, error) {
	invoices, err := s.ListInvoices(ctx, tenant)
	if err != nil {
		return "", err
	}
	numbers := make([]string, len(invoices))
	for i, inv := range invoices {
		numbers[i] = inv.Number
	}
	return NextNumber(numbers, s.now()), nil
}

// CreateInvoice validates and stores a new invoice
func (s *Service) CreateInvoice(ctx context.Context, tenant string, req models.CreateInvoiceRequest) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patient, err := s.findPatient(ctx, tenant, req.PatientID)
	if err != nil && !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}

	if req.Number == "" {
		if req.Number, err = s.nextNumber(ctx, tenant); err != nil {
			return nil, err
		}
	}

	inv, err := NewInvoice(req, patient, s.newID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.putInvoice(ctx, tenant, inv); err != nil {
		return nil, err
	}

	log.Debug("Created invoice %s (%s) for patient %s", inv.Number, inv.ID, inv.PatientID)
	return inv, nil
}

// UpdateInvoice applies a status and/or notes change
func (s *Service) UpdateInvoice(ctx context.Context, tenant, id string, req models.UpdateInvoiceRequest) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.GetInvoice(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if req.Status != nil && *req.Status != inv.Status {
		if inv, err = SetStatus(inv, *req.Status, s.newID(), now); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		inv.Notes = *req.Notes
		inv.UpdatedAt = now
	}

	if err := s.putInvoice(ctx, tenant, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// DeleteInvoice removes an invoice
func (s *Service) DeleteInvoice(ctx context.Context, tenant, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.store.Exists(ctx, tenant, storage.CollectionInvoices, id)
	if err != nil {
		return fmt.Errorf("check invoice: %w", err)
	}
	if !exists {
		return ErrInvoiceNotFound
	}
	return s.store.Delete(ctx, tenant, storage.CollectionInvoices, id)
}

// RecordPayment adds a payment to an invoice
func (s *Service) RecordPayment(ctx context.Context, tenant, id string, req models.PaymentRequest) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.GetInvoice(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	updated, err := RecordPayment(inv, req.Amount, req.Method, req.Reference, s.newID(), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.putInvoice(ctx, tenant, updated); err != nil {
		return nil, err
	}

	log.Info("Recorded payment of %.2f on invoice %s (%s)", req.Amount, updated.Number, updated.Status)
	return updated, nil
}

// ApplyInsuranceCredit applies an approved insurance claim to an invoice
func (s *Service) ApplyInsuranceCredit(ctx context.Context, tenant, id, claimID string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.GetInvoice(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	claims, err := s.ListInsuranceClaims(ctx, tenant)
	if err != nil {
		return nil, err
	}

	for _, claim := range claims {
		if claim.ID != claimID {
			continue
		}
		updated, err := ApplyInsuranceCredit(inv, claim, s.newID(), s.now())
		if err != nil {
			return nil, err
		}
		if err := s.putInvoice(ctx, tenant, updated); err != nil {
			return nil, err
		}
		log.Info("Applied insurance claim %s to invoice %s", claim.ID, updated.Number)
		return updated, nil
	}
	return nil, ErrClaimNotFound
}

// CreateFromTreatment invoices a completed treatment
func (s *Service) CreateFromTreatment(ctx context.Context, tenant, treatmentID string) (*models.Invoice, error) {
	treatments, err := s.ListTreatments(ctx, tenant)
	if err != nil {
		return nil, err
	}

	var treatment *models.Treatment
	for i := range treatments {
		if treatments[i].ID == treatmentID {
			treatment = &treatments[i]
			break
		}
	}
	if treatment == nil {
		return nil, ErrTreatmentNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	patient, err := s.findPatient(ctx, tenant, treatment.PatientID)
	if err != nil && !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}
	number, err := s.nextNumber(ctx, tenant)
	if err != nil {
		return nil, err
	}

	inv, err := FromTreatment(*treatment, patient, number, s.newID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.putInvoice(ctx, tenant, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Summary returns dashboard totals
func (s *Service) Summary(ctx context.Context, tenant string) (models.InvoiceSummary, error) {
	invoices, err := s.ListInvoices(ctx, tenant)
	if err != nil {
		return models.InvoiceSummary{}, err
	}
	return Summarize(invoices), nil
}

// SweepOverdue marks past-due unpaid invoices Overdue and returns how many changed
func (s *Service) SweepOverdue(ctx context.Context, tenant string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoices, err := s.ListInvoices(ctx, tenant)
	if err != nil {
		return 0, err
	}

	changed := MarkOverdue(invoices, s.now())
	for _, inv := range changed {
		if err := s.putInvoice(ctx, tenant, inv); err != nil {
			return 0, err
		}
	}
	return len(changed), nil
}

// =============================================================================
// Patients
// =============================================================================

// ListPatients returns all patients ordered by name
func (s *Service) ListPatients(ctx context.Context, tenant string) ([]models.Patient, error) {
	items, err := s.store.List(ctx, tenant, storage.CollectionPatients)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	patients := make([]models.Patient, 0, len(items))
	for _, item := range items {
		var p models.Patient
		if err := json.Unmarshal(item.Content, &p); err != nil {
			log.Warn("Skipping malformed patient %s: %v", item.ID, err)
			continue
		}
		patients = append(patients, p)
	}
	sort.SliceStable(patients, func(i, j int) bool {
		return patients[i].FullName() < patients[j].FullName()
	})
	return patients, nil
}

// CreatePatient stores a patient
func (s *Service) CreatePatient(ctx context.Context, tenant string, p models.Patient) (*models.Patient, error) {
	if p.FirstName == "" && p.LastName == "" {
		return nil, ErrPatientName
	}
	if p.ID == "" {
		p.ID = s.newID()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Put(ctx, tenant, storage.CollectionPatients, p.ID, data); err != nil {
		return nil, fmt.Errorf("save patient: %w", err)
	}
	return &p, nil
}

func (s *Service) findPatient(ctx context.Context, tenant, id string) (*models.Patient, error) {
	if id == "" {
		return nil, ErrPatientNotFound
	}
	item, err := s.store.Get(ctx, tenant, storage.CollectionPatients, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	var p models.Patient
	if err := json.Unmarshal(item.Content, &p); err != nil {
		return nil, fmt.Errorf("decode patient %s: %w", id, err)
	}
	return &p, nil
}

// =============================================================================
// Legacy collections
// =============================================================================

func listLegacy[T any](ctx context.Context, r storage.LegacyReader, tenant, collection string) ([]T, error) {
	records, err := r.List(ctx, tenant, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	out := make([]T, 0, len(records))
	for _, record := range records {
		var v T
		if err := models.FromRecord(record, &v); err != nil {
			log.Warn("Skipping malformed %s record: %v", collection, err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ListTreatments reads treatments from the legacy store
func (s *Service) ListTreatments(ctx context.Context, tenant string) ([]models.Treatment, error) {
	return listLegacy[models.Treatment](ctx, s.legacy, tenant, storage.CollectionTreatments)
}

// ListAppointments reads appointments from the legacy store
func (s *Service) ListAppointments(ctx context.Context, tenant string) ([]models.Appointment, error) {
	return listLegacy[models.Appointment](ctx, s.legacy, tenant, storage.CollectionAppointments)
}

// ListInsuranceClaims reads insurance claims from the legacy store
func (s *Service) ListInsuranceClaims(ctx context.Context, tenant string) ([]models.InsuranceClaim, error) {
	return listLegacy[models.InsuranceClaim](ctx, s.legacy, tenant, storage.CollectionInsuranceClaims)
}
