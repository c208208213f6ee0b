package hospital

// ResourceConfig holds one hospital's external booking-provider endpoint and
// credentials. Inactive configs are skipped by the sync job.
type ResourceConfig struct {
	HospitalCode string `json:"hospitalCode"`
	HospitalID   string `json:"hospitalId"`
	HospitalName string `json:"hospitalName"`
	ContactPhone string `json:"contactPhone,omitempty"`
	BaseURL      string `json:"baseUrl"`
	APIKey       string `json:"-"`
	Active       bool   `json:"active"`
}

// InboundBooking is one record from a provider's pending booking queue.
type InboundBooking struct {
	AppointmentID     int64   `json:"appointmentId"`
	AppointmentStatus int     `json:"appointmentStatus"`
	PatientID         string  `json:"patientId"`
	PatientName       string  `json:"patientName"`
	DoctorID          string  `json:"doctorId"`
	DoctorName        string  `json:"doctorName"`
	DoctorPhone       string  `json:"doctorPhone"`
	AppointmentDate   string  `json:"appointmentDate"` // "2006-01-02"
	AppointmentTime   *string `json:"appointmentTime"` // "HH:MM"
	VideoConsultation bool    `json:"videoConsultation"`
}

// PatientMapping resolves a provider patient id to the internal account pair.
type PatientMapping struct {
	UserID         string
	FamilyMemberID string
}
