// Package client is the authenticated request pipeline for the Singularity
// job-scheduling API.
//
// It turns an endpoint.Endpoint and a raw payload string into one signed HTTP
// round trip and a normalized Response.
//
// # Building a client
//
// The base API URL is parsed once into a RequestContext. A URL without a
// scheme is rejected before any network activity:
//
//	rc, err := client.NewRequestContext("https://api.singularity-technologies.io")
//	if err != nil {
//	    return err // errors.Is(err, client.ErrMissingScheme)
//	}
//	c, err := client.New(rc, client.Credentials{APIKey: key, Secret: secret},
//	    client.WithTimeout(30*time.Second),
//	    client.WithLogger(logger),
//	)
//
// # Sending a request
//
// Request signs the payload, sends it, and writes a one-line status summary
// ("[/batch][201][trace-token]") to the status writer:
//
//	resp, err := c.Request(ctx, endpoint.BatchCreate, `{"mode":"pythagoras",...}`)
//	var connErr *client.ConnectivityError
//	if errors.As(err, &connErr) {
//	    // the API could not be reached; nothing is retried
//	}
//	fmt.Println(resp.StatusCode, resp.Body)
//
// Body holds the decoded JSON value when the response is JSON and the raw
// text otherwise.
//
// # Signing
//
// When a secret is configured every request carries two headers:
//
//	X-Singularity-Apikey:    <api key>
//	X-Singularity-Signature: hex(HMAC-SHA512(secret, METHOD + "\n" + PATH + "\n" + PAYLOAD))
//
// PATH is the endpoint path (no scheme, host, query or fragment) and PAYLOAD
// is the exact request body, empty for GET requests. Without a secret the
// request is sent unsigned and a warning is logged.
package client
