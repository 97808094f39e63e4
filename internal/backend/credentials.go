package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-lwm2m/internal/engine"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// Credential admits one endpoint and binds it to a device and profile.
type Credential struct {
	Endpoint   string    `json:"endpoint"`
	DeviceName string    `json:"device_name"`
	DeviceType string    `json:"device_type,omitempty"`
	ProfileID  uuid.UUID `json:"profile_id"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the fields required to admit a device.
func (c Credential) Validate() error {
	switch {
	case c.Endpoint == "":
		return fmt.Errorf("%w: endpoint is required", ErrInvalidCredential)
	case c.DeviceName == "":
		return fmt.Errorf("%w: device_name is required for %s", ErrInvalidCredential, c.Endpoint)
	case c.ProfileID == uuid.Nil:
		return fmt.Errorf("%w: profile_id is required for %s", ErrInvalidCredential, c.Endpoint)
	}
	return nil
}

// CredentialStore is the engine's Authenticator over the
// device_credentials table.
type CredentialStore struct {
	db *sql.DB
}

var _ engine.Authenticator = (*CredentialStore)(nil)

// NewCredentialStore creates a store over an open SQLite connection.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// ValidateCredentials admits a registration whose endpoint has an enabled
// credential. Anything else is rejected with an error wrapping
// engine.ErrUnauthorized.
func (s *CredentialStore) ValidateCredentials(ctx context.Context, reg engine.Registration) (session.Identity, error) {
	cred, err := s.Get(ctx, reg.Endpoint)
	if errors.Is(err, ErrCredentialNotFound) {
		return session.Identity{}, fmt.Errorf("%w: unknown endpoint %q", engine.ErrUnauthorized, reg.Endpoint)
	}
	if err != nil {
		return session.Identity{}, err
	}
	if !cred.Enabled {
		return session.Identity{}, fmt.Errorf("%w: endpoint %q is disabled", engine.ErrUnauthorized, reg.Endpoint)
	}

	return session.Identity{
		DeviceName: cred.DeviceName,
		DeviceType: cred.DeviceType,
		ProfileID:  cred.ProfileID,
	}, nil
}

// Get returns the credential for endpoint.
// Returns ErrCredentialNotFound if no row exists.
func (s *CredentialStore) Get(ctx context.Context, endpoint string) (Credential, error) {
	var (
		c                    Credential
		profileID            string
		enabled              int
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT endpoint, device_name, device_type, profile_id, enabled, created_at, updated_at
		 FROM device_credentials WHERE endpoint = ?`, endpoint,
	).Scan(&c.Endpoint, &c.DeviceName, &c.DeviceType, &profileID, &enabled, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrCredentialNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("querying credential: %w", err)
	}

	c.ProfileID, err = uuid.Parse(profileID)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: stored profile_id %q for %s", ErrInvalidCredential, profileID, endpoint)
	}
	c.Enabled = enabled != 0
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return c, nil
}

// Put inserts or replaces a credential.
func (s *CredentialStore) Put(ctx context.Context, c Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_credentials (endpoint, device_name, device_type, profile_id, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
			device_name = excluded.device_name,
			device_type = excluded.device_type,
			profile_id = excluded.profile_id,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		c.Endpoint, c.DeviceName, c.DeviceType, c.ProfileID.String(), boolToInt(c.Enabled), now, now,
	)
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

// Seed stores every credential not already present. Existing rows win.
func (s *CredentialStore) Seed(ctx context.Context, creds []Credential) (int, error) {
	seeded := 0
	for _, c := range creds {
		_, err := s.Get(ctx, c.Endpoint)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrCredentialNotFound) {
			return seeded, err
		}
		if err := s.Put(ctx, c); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// credentialsFile is the devices section of the seed file that also
// carries the reporting profiles:
//
//	devices:
//	  - endpoint: "urn:imei:3520990"
//	    device_name: "tracker-7"
//	    device_type: "asset-tracker"
//	    profile_id: "7c9e6679-7425-40de-944b-e07fc1f90ae7"
type credentialsFile struct {
	Devices []fileCredential `yaml:"devices"`
}

// fileCredential defaults Enabled to true when the key is absent.
type fileCredential struct {
	Endpoint   string `yaml:"endpoint"`
	DeviceName string `yaml:"device_name"`
	DeviceType string `yaml:"device_type"`
	ProfileID  string `yaml:"profile_id"`
	Enabled    *bool  `yaml:"enabled"`
}

// LoadCredentialsFile reads the devices section of a seed file.
func LoadCredentialsFile(path string) ([]Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return ParseCredentials(data)
}

// ParseCredentials parses the devices section of a seed file.
func ParseCredentials(data []byte) ([]Credential, error) {
	var f credentialsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}

	out := make([]Credential, 0, len(f.Devices))
	seen := make(map[string]struct{}, len(f.Devices))
	for i, d := range f.Devices {
		id, err := uuid.Parse(d.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("%w: devices[%d].profile_id %q", ErrInvalidCredential, i, d.ProfileID)
		}
		if _, dup := seen[d.Endpoint]; dup {
			return nil, fmt.Errorf("%w: devices[%d] duplicates endpoint %q", ErrInvalidCredential, i, d.Endpoint)
		}
		seen[d.Endpoint] = struct{}{}

		c := Credential{
			Endpoint:   d.Endpoint,
			DeviceName: d.DeviceName,
			DeviceType: d.DeviceType,
			ProfileID:  id,
			Enabled:    d.Enabled == nil || *d.Enabled,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("devices[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}
