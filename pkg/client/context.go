package client

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/endpoint"
)

var (
	// ErrMissingScheme is returned by NewRequestContext when the base URL has
	// no scheme, e.g. "api.example.com".
	ErrMissingScheme = errors.New("api url requires a scheme, e.g. https")

	// ErrMissingHost is returned by NewRequestContext when the base URL has a
	// scheme but no host.
	ErrMissingHost = errors.New("api url requires a host")
)

// RequestContext holds the scheme and authority every request is sent to.
type RequestContext struct {
	Scheme string
	Host   string
}

// Credentials identify and authenticate the caller. An empty Secret means
// requests are sent unsigned.
type Credentials struct {
	APIKey string
	Secret string
}

// NewRequestContext parses baseURL and keeps only its scheme and host.
// Any path, query or fragment on baseURL is ignored.
func NewRequestContext(baseURL string) (RequestContext, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return RequestContext{}, fmt.Errorf("parse api url %q: %w", baseURL, err)
	}
	if u.Scheme == "" {
		return RequestContext{}, fmt.Errorf("%w: got %q", ErrMissingScheme, baseURL)
	}
	if u.Host == "" {
		return RequestContext{}, fmt.Errorf("%w: got %q", ErrMissingHost, baseURL)
	}
	return RequestContext{Scheme: u.Scheme, Host: u.Host}, nil
}

// MustRequestContext is like NewRequestContext but panics on error.
func MustRequestContext(baseURL string) RequestContext {
	rc, err := NewRequestContext(baseURL)
	if err != nil {
		panic(err)
	}
	return rc
}

// BuildURL returns the absolute URL for e. Query, fragment and params are
// always empty. Endpoint paths are already escaped (see endpoint.WithID) and
// are emitted as-is.
func BuildURL(rc RequestContext, e endpoint.Endpoint) string {
	u := url.URL{
		Scheme: rc.Scheme,
		Host:   rc.Host,
		Path:   e.Path,
	}
	if unescaped, err := url.PathUnescape(e.Path); err == nil {
		u.Path = unescaped
		u.RawPath = e.Path
	}
	return u.String()
}
