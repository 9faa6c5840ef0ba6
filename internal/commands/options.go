package commands

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/SingularityDigitalTechnologies/singularity-cli/internal/payload"
	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/endpoint"
	"github.com/google/uuid"
)

// DefaultWatchInterval paces status polling with --watch.
const DefaultWatchInterval = 5 * time.Second

// ── batch add ────────────────────────────────────────────────────────────────

// BatchCreateOptions describes a new batch of jobs.
type BatchCreateOptions struct {
	Mode string
	CPUs int
	GPUs int
	Jobs payload.Jobs
}

type requisitions struct {
	CPU int `json:"cpu"`
	GPU int `json:"gpu"`
}

type batchCreateBody struct {
	Mode         string       `json:"mode"`
	Jobs         payload.Jobs `json:"jobs"`
	Requisitions requisitions `json:"requisitions"`
}

// Validate checks the options before anything is sent.
func (o BatchCreateOptions) Validate() error {
	if strings.TrimSpace(o.Mode) == "" {
		return Invalid("--mode", "is required")
	}
	if o.CPUs < 1 {
		return Invalid("--cpus", "must be at least 1, got %d", o.CPUs)
	}
	if o.GPUs < 0 {
		return Invalid("--gpus", "must not be negative, got %d", o.GPUs)
	}
	if o.Jobs.Len() == 0 {
		return Invalid("jobs", "at least one job is required")
	}
	return nil
}

// Payload returns the request body sent to BatchCreate.
func (o BatchCreateOptions) Payload() (string, error) {
	return marshal(batchCreateBody{
		Mode:         o.Mode,
		Jobs:         o.Jobs,
		Requisitions: requisitions{CPU: o.CPUs, GPU: o.GPUs},
	})
}

// ── batch / job status ───────────────────────────────────────────────────────

// StatusOptions selects a batch or job status lookup.
type StatusOptions struct {
	Endpoint endpoint.Endpoint // BatchInfo or JobInfo
	UUID     string
	Watch    bool
	Interval time.Duration
}

// Validate checks the UUID and the watch settings.
func (o StatusOptions) Validate() error {
	if o.UUID != "" {
		if _, err := uuid.Parse(o.UUID); err != nil {
			return &ValidationError{Field: "--uuid", Err: err}
		}
	}
	if o.Watch {
		if o.UUID == "" {
			return Invalid("--watch", "requires --uuid")
		}
		if o.Interval <= 0 {
			return Invalid("--interval", "must be positive, got %s", o.Interval)
		}
	}
	return nil
}

// Target returns the endpoint to query, with the UUID appended when set.
func (o StatusOptions) Target() endpoint.Endpoint {
	if o.UUID == "" {
		return o.Endpoint
	}
	return endpoint.WithID(o.Endpoint, o.UUID)
}

// ── key generate ─────────────────────────────────────────────────────────────

// GenerateKeyOptions requests a new signing key for an account email.
type GenerateKeyOptions struct {
	Email string
}

// Validate checks the email address.
func (o GenerateKeyOptions) Validate() error {
	return validateEmail(o.Email)
}

// Payload returns the request body sent to GenerateKey.
func (o GenerateKeyOptions) Payload() (string, error) {
	return marshal(struct {
		Email string `json:"email"`
	}{o.Email})
}

// ── user add ─────────────────────────────────────────────────────────────────

// UserAddOptions describes a new user.
type UserAddOptions struct {
	FirstName string
	LastName  string
	Email     string
	UserType  string
	Password  string
}

// Validate requires every field and a plain email address.
func (o UserAddOptions) Validate() error {
	if err := o.ValidateProfile(); err != nil {
		return err
	}
	if strings.TrimSpace(o.Password) == "" {
		return Invalid("--password", "is required")
	}
	return nil
}

// ValidateProfile checks every field except the password. It runs before
// the password prompt.
func (o UserAddOptions) ValidateProfile() error {
	required := []struct{ flag, value string }{
		{"--first-name", o.FirstName},
		{"--last-name", o.LastName},
		{"--email", o.Email},
		{"--user-type", o.UserType},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return Invalid(r.flag, "is required")
		}
	}
	return validateEmail(o.Email)
}

// Payload returns the request body sent to UserAdd.
func (o UserAddOptions) Payload() (string, error) {
	return marshal(struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		UserType  string `json:"user_type"`
		Password  string `json:"password"`
	}{o.FirstName, o.LastName, o.Email, o.UserType, o.Password})
}

// ── company add ──────────────────────────────────────────────────────────────

// CompanyAddOptions describes a new company.
type CompanyAddOptions struct {
	Name string
}

// Validate requires a company name.
func (o CompanyAddOptions) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return Invalid("--name", "is required")
	}
	return nil
}

// Payload returns the request body sent to CompanyAdd.
func (o CompanyAddOptions) Payload() (string, error) {
	return marshal(struct {
		Name string `json:"name"`
	}{o.Name})
}

// ── dataset add ──────────────────────────────────────────────────────────────

// DatasetAddOptions describes a new dataset.
type DatasetAddOptions struct {
	Name       string
	PilotCount int
}

// Validate requires a name and a non-negative pilot count.
func (o DatasetAddOptions) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return Invalid("--name", "is required")
	}
	if o.PilotCount < 0 {
		return Invalid("--pilot-count", "must not be negative, got %d", o.PilotCount)
	}
	return nil
}

// Payload returns the request body sent to DatasetAdd.
func (o DatasetAddOptions) Payload() (string, error) {
	return marshal(struct {
		Name       string `json:"name"`
		PilotCount int    `json:"pilot_count"`
	}{o.Name, o.PilotCount})
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return Invalid("--email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return &ValidationError{Field: "--email", Err: err}
	}
	if addr.Address != email {
		return Invalid("--email", "expected a bare address like user@example.com, got %q", email)
	}
	return nil
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}
