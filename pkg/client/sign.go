package client

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"

	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/endpoint"
)

// Header names understood by the Singularity API.
const (
	HeaderAPIKey    = "X-Singularity-Apikey"
	HeaderSignature = "X-Singularity-Signature"
	HeaderTrace     = "X-Singularity-Trace"
)

// Sign returns the lowercase hex HMAC-SHA512 of "method\npath\npayload"
// keyed by secret.
func Sign(secret, method, path, payload string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(method + "\n" + path + "\n" + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Headers returns the authentication headers for sending payload to e.
// The map is empty when creds has no secret.
func Headers(e endpoint.Endpoint, payload string, creds Credentials) map[string]string {
	headers := make(map[string]string, 2)
	if creds.Secret == "" {
		return headers
	}
	headers[HeaderAPIKey] = creds.APIKey
	headers[HeaderSignature] = Sign(creds.Secret, e.Method, e.Path, payload)
	return headers
}

// SignedRequest is a fully prepared request that has not been sent.
type SignedRequest struct {
	Method  string
	URL     string
	Body    string
	Headers map[string]string
}

// Signed reports whether the request carries a signature.
func (r SignedRequest) Signed() bool {
	_, ok := r.Headers[HeaderSignature]
	return ok
}
