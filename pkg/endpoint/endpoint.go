// Package endpoint is the fixed table of remote operations exposed by the
// Singularity API.
//
// Each operation is an Endpoint: an HTTP method and a URL path. Endpoints are
// plain values defined once at package init and never mutated. Operations that
// address a single resource (a batch or a job) are derived from their base
// endpoint with WithID:
//
//	endpoint.WithID(endpoint.BatchInfo, "5f0c…") // GET /batch/5f0c…
package endpoint

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Endpoint identifies one remote operation.
type Endpoint struct {
	Path   string
	Method string
}

// String renders the endpoint as "METHOD /path".
func (e Endpoint) String() string {
	return e.Method + " " + e.Path
}

var (
	Ping        = Endpoint{Path: "/ping", Method: http.MethodGet}
	AtlasStatus = Endpoint{Path: "/status", Method: http.MethodGet}

	BatchInfo   = Endpoint{Path: "/batch", Method: http.MethodGet}
	BatchCreate = Endpoint{Path: "/batch", Method: http.MethodPost}
	JobInfo     = Endpoint{Path: "/job", Method: http.MethodGet}

	GenerateKey = Endpoint{Path: "/sec/key", Method: http.MethodPost}
	UserAdd     = Endpoint{Path: "/user", Method: http.MethodPost}
	CompanyAdd  = Endpoint{Path: "/company", Method: http.MethodPost}
	DatasetAdd  = Endpoint{Path: "/data", Method: http.MethodPost}

	// ChunkAdd is declared for completeness; chunked dataset upload is not
	// implemented by this client.
	ChunkAdd = Endpoint{Path: "/chunk", Method: http.MethodPost}
)

var registry = map[string]Endpoint{
	"ping":         Ping,
	"atlas_status": AtlasStatus,
	"batch_info":   BatchInfo,
	"batch_create": BatchCreate,
	"job_info":     JobInfo,
	"generate_key": GenerateKey,
	"user_add":     UserAdd,
	"company_add":  CompanyAdd,
	"dataset_add":  DatasetAdd,
	"chunk_add":    ChunkAdd,
}

// WithID returns a new Endpoint addressing the resource id under e.
// The method is unchanged and e itself is not modified.
func WithID(e Endpoint, id string) Endpoint {
	return Endpoint{
		Path:   strings.TrimRight(e.Path, "/") + "/" + url.PathEscape(id),
		Method: e.Method,
	}
}

// Route returns the path template of e: the registered path itself, or the
// base path followed by "/{id}" for an endpoint built with WithID. Paths that
// match no registered endpoint are returned unchanged.
func Route(e Endpoint) string {
	base := ""
	for _, r := range registry {
		if r.Method != e.Method {
			continue
		}
		if r.Path == e.Path {
			return r.Path
		}
		prefix := strings.TrimRight(r.Path, "/") + "/"
		if strings.HasPrefix(e.Path, prefix) && !strings.Contains(e.Path[len(prefix):], "/") && len(r.Path) > len(base) {
			base = r.Path
		}
	}
	if base == "" {
		return e.Path
	}
	return base + "/{id}"
}

// Lookup returns the endpoint registered under name.
func Lookup(name string) (Endpoint, error) {
	e, ok := registry[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown endpoint %q", name)
	}
	return e, nil
}

// Names returns the registered endpoint names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the registry keyed by name.
func All() map[string]Endpoint {
	out := make(map[string]Endpoint, len(registry))
	for name, e := range registry {
		out[name] = e
	}
	return out
}
