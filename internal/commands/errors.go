package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/client"
)

// ExitCode is the process exit status for a command outcome.
type ExitCode int

const (
	ExitOK           ExitCode = 0
	ExitUnexpected   ExitCode = 1
	ExitInvalid      ExitCode = 2 // configuration or validation error
	ExitConnectivity ExitCode = 3
	ExitAPIStatus    ExitCode = 4 // the API answered with status >= 400
	ExitInterrupted  ExitCode = 130
)

// ValidationError reports bad input caught before any request is sent:
// malformed flags, missing credentials, unreadable config or payload files.
type ValidationError struct {
	Field string
	Err   error
}

// Invalid returns a ValidationError for field with a formatted message.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StatusError reports an API response with status >= 400. The response has
// already been displayed when it is returned.
type StatusError struct {
	Path       string
	StatusCode int
	TraceToken string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: API returned status %d", e.Path, e.StatusCode)
	if e.TraceToken != "" {
		msg += " (trace " + e.TraceToken + ")"
	}
	return msg
}

// ExitError pins an explicit exit code to an error.
type ExitError struct {
	Code ExitCode
	error
}

// WithExitCode wraps err so ExitCodeFor reports code. A nil err stays nil.
func WithExitCode(err error, code ExitCode) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, error: err}
}

func (e *ExitError) Unwrap() error { return e.error }

// ExitCodeFor classifies err into a process exit code.
func ExitCodeFor(err error) ExitCode {
	if err == nil {
		return ExitOK
	}

	var (
		exitErr       *ExitError
		validationErr *ValidationError
		connErr       *client.ConnectivityError
		statusErr     *StatusError
	)
	switch {
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.As(err, &validationErr),
		errors.Is(err, client.ErrMissingScheme),
		errors.Is(err, client.ErrMissingHost):
		return ExitInvalid
	case errors.As(err, &connErr):
		return ExitConnectivity
	case errors.As(err, &statusErr):
		return ExitAPIStatus
	default:
		return ExitUnexpected
	}
}

// RequireCredentials fails when the API key or secret is missing. Commands
// that act on an account call it before building a request.
func RequireCredentials(creds client.Credentials) error {
	var missing []string
	if creds.APIKey == "" {
		missing = append(missing, "--api-key")
	}
	if creds.Secret == "" {
		missing = append(missing, "--secret")
	}
	if len(missing) == 0 {
		return nil
	}
	return Invalid("credentials", "missing %s: pass it as a flag, a SINGULARITY_* environment variable, or in the config file",
		strings.Join(missing, " and "))
}
