package hospital

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ResourceStore reads hospital provider configurations and the external
// patient-id mapping. Both are collaborator-owned reference data; this store
// only reads them.
type ResourceStore struct {
	db DB
}

// NewResourceStore creates a resource store.
func NewResourceStore(db DB) *ResourceStore {
	return &ResourceStore{db: db}
}

// ListActive returns every active hospital resource configuration.
func (s *ResourceStore) ListActive(ctx context.Context) ([]ResourceConfig, error) {
	rows, err := s.db.Query(ctx, `
		SELECT hospital_code, hospital_id, hospital_name, contact_phone, base_url, api_key, active
		FROM hospital_resources
		WHERE active
		ORDER BY hospital_code ASC`)
	if err != nil {
		return nil, fmt.Errorf("hospital: list active resources: %w", err)
	}
	defer rows.Close()

	var result []ResourceConfig
	for rows.Next() {
		var cfg ResourceConfig
		if err := rows.Scan(&cfg.HospitalCode, &cfg.HospitalID, &cfg.HospitalName,
			&cfg.ContactPhone, &cfg.BaseURL, &cfg.APIKey, &cfg.Active); err != nil {
			return nil, fmt.Errorf("hospital: scan resource: %w", err)
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

// GetByCode returns the resource configuration for a hospital code, or nil
// when none exists.
func (s *ResourceStore) GetByCode(ctx context.Context, hospitalCode string) (*ResourceConfig, error) {
	rows, err := s.db.Query(ctx, `
		SELECT hospital_code, hospital_id, hospital_name, contact_phone, base_url, api_key, active
		FROM hospital_resources
		WHERE hospital_code = $1
		LIMIT 1`, hospitalCode)
	if err != nil {
		return nil, fmt.Errorf("hospital: get resource by code: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var cfg ResourceConfig
	if err := rows.Scan(&cfg.HospitalCode, &cfg.HospitalID, &cfg.HospitalName,
		&cfg.ContactPhone, &cfg.BaseURL, &cfg.APIKey, &cfg.Active); err != nil {
		return nil, fmt.Errorf("hospital: scan resource: %w", err)
	}
	return &cfg, nil
}

// LookupPatientMapping resolves a provider patient id to the internal
// (user, family member) pair. Returns nil when no mapping exists; callers
// skip the record rather than fabricate an account.
func (s *ResourceStore) LookupPatientMapping(ctx context.Context, hospitalCode, externalPatientID string) (*PatientMapping, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, family_member_id
		FROM family_member_hospital_accounts
		WHERE hospital_code = $1 AND external_patient_id = $2
		LIMIT 1`, hospitalCode, externalPatientID)
	if err != nil {
		return nil, fmt.Errorf("hospital: lookup patient mapping: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var m PatientMapping
	if err := rows.Scan(&m.UserID, &m.FamilyMemberID); err != nil {
		return nil, fmt.Errorf("hospital: scan patient mapping: %w", err)
	}
	return &m, nil
}
