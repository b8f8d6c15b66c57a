package store

import (
	"database/sql"

	"github.com/pavelanni/qpaper/internal/model"
)

// SetSetting upserts a key-value pair in the settings table.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetSetting returns the value for a settings key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetInstitution stores the identity lines printed on papers. Empty fields are stored as empty.
func (s *Store) SetInstitution(inst model.Institution) error {
	pairs := []struct{ k, v string }{
		{"institution_name", inst.Name},
		{"institution_status", inst.Status},
		{"institution_address", inst.Address},
	}
	for _, p := range pairs {
		if err := s.SetSetting(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetInstitution reads the stored identity lines. Missing keys come back empty.
func (s *Store) GetInstitution() (model.Institution, error) {
	var inst model.Institution
	var err error

	if inst.Name, err = s.GetSetting("institution_name"); err != nil {
		return inst, err
	}
	if inst.Status, err = s.GetSetting("institution_status"); err != nil {
		return inst, err
	}
	if inst.Address, err = s.GetSetting("institution_address"); err != nil {
		return inst, err
	}
	return inst, nil
}
