// Package output renders API responses for the terminal.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/client"
	"github.com/jmespath/go-jmespath"
)

// Formats understood by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrNotJSON is returned when a query is given for a response that is not JSON.
var ErrNotJSON = errors.New("response is not JSON, --query cannot be applied")

// envelope is the shape printed with --format json.
type envelope struct {
	StatusCode int    `json:"status_code"`
	TraceToken string `json:"trace_token"`
	Body       any    `json:"body"`
}

// Render writes resp to w.
//
// With the text format a JSON body is printed indented and any other body is
// printed as received. The json format wraps the body with the status code
// and trace token. A non-empty query is a JMESPath expression applied to the
// body first.
func Render(w io.Writer, resp *client.Response, format, query string) error {
	body := resp.Body
	if query != "" {
		if !resp.JSON {
			return ErrNotJSON
		}
		result, err := Query(resp.Raw, query)
		if err != nil {
			return err
		}
		body = result
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, envelope{
			StatusCode: resp.StatusCode,
			TraceToken: resp.TraceToken,
			Body:       body,
		})
	case FormatText, "":
		if !resp.JSON {
			return writeText(w, resp.Raw)
		}
		return writeJSON(w, body)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Query applies a JMESPath expression to a JSON document.
func Query(document, expression string) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(document), &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath expression '%s': %w", expression, err)
	}

	result, err := jp.Search(data)
	if err != nil {
		return nil, fmt.Errorf("JMESPath search failed: %w", err)
	}
	return result, nil
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}

func writeText(w io.Writer, s string) error {
	if s == "" {
		return nil
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := io.WriteString(w, s)
	return err
}
