package models

// Patient is a clinic patient
type Patient struct {
	ID                string `json:"id"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	InsuranceProvider string `json:"insuranceProvider,omitempty"`
}

// FullName joins first and last name
func (p Patient) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Treatment is a procedure performed (or planned) for a patient
type Treatment struct {
	ID        string  `json:"id"`
	PatientID string  `json:"patientId"`
	Procedure string  `json:"procedure"`
	Tooth     string  `json:"tooth,omitempty"`
	Cost      float64 `json:"cost"`
	Status    string  `json:"status"` // planned, in-progress, completed
	Date      string  `json:"date,omitempty"`
}

// Appointment is a scheduled visit
type Appointment struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	Date      string `json:"date"`
	Reason    string `json:"reason,omitempty"`
	Status    string `json:"status,omitempty"`
}

// InsuranceClaim is a claim filed with a patient's insurer
type InsuranceClaim struct {
	ID             string  `json:"id"`
	PatientID      string  `json:"patientId"`
	TreatmentID    string  `json:"treatmentId,omitempty"`
	Provider       string  `json:"provider"`
	ClaimedAmount  float64 `json:"claimedAmount"`
	ApprovedAmount float64 `json:"approvedAmount"`
	Status         string  `json:"status"` // submitted, approved, denied, applied
}
