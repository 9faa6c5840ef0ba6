// Package commands implements the CLI's commands on top of pkg/client.
//
// Each command takes typed options, validates them, builds its request body
// and sends it through a Requester. The response is rendered with
// internal/output. Failures are classified into exit codes by ExitCodeFor.
package commands

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/SingularityDigitalTechnologies/singularity-cli/internal/output"
	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/client"
	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/endpoint"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Requester sends one authenticated request. *client.Client implements it.
type Requester interface {
	Request(ctx context.Context, e endpoint.Endpoint, payload string) (*client.Response, error)
}

// Runner executes commands against an API and renders their responses.
type Runner struct {
	Client Requester
	Out    io.Writer
	Format string
	Query  string
	Logger *zap.Logger
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// do sends one request and renders the response. Statuses >= 400 are
// rendered and then returned as a *StatusError.
func (r *Runner) do(ctx context.Context, e endpoint.Endpoint, body string) (*client.Response, error) {
	resp, err := r.Client.Request(ctx, e, body)
	if err != nil {
		return nil, err
	}
	if err := output.Render(r.Out, resp, r.Format, r.Query); err != nil {
		return resp, &ValidationError{Field: "--query", Err: err}
	}
	if resp.StatusCode >= 400 {
		return resp, &StatusError{Path: e.Path, StatusCode: resp.StatusCode, TraceToken: resp.TraceToken}
	}
	return resp, nil
}

// Ping checks that the API is reachable.
func (r *Runner) Ping(ctx context.Context) error {
	_, err := r.do(ctx, endpoint.Ping, "")
	return err
}

// AtlasStatus reports the state of the compute atlas.
func (r *Runner) AtlasStatus(ctx context.Context) error {
	_, err := r.do(ctx, endpoint.AtlasStatus, "")
	return err
}

// BatchCreate submits a batch of jobs.
func (r *Runner) BatchCreate(ctx context.Context, o BatchCreateOptions) error {
	if err := o.Validate(); err != nil {
		return err
	}
	body, err := o.Payload()
	if err != nil {
		return err
	}
	r.logger().Debug("submitting batch",
		zap.String("mode", o.Mode),
		zap.Int("jobs", o.Jobs.Len()),
		zap.Int("cpus", o.CPUs),
		zap.Int("gpus", o.GPUs),
	)
	_, err = r.do(ctx, endpoint.BatchCreate, body)
	return err
}

// GenerateKey requests a new signing key for an account.
func (r *Runner) GenerateKey(ctx context.Context, o GenerateKeyOptions) error {
	return r.post(ctx, endpoint.GenerateKey, o)
}

// UserAdd creates a user.
func (r *Runner) UserAdd(ctx context.Context, o UserAddOptions) error {
	return r.post(ctx, endpoint.UserAdd, o)
}

// CompanyAdd creates a company.
func (r *Runner) CompanyAdd(ctx context.Context, o CompanyAddOptions) error {
	return r.post(ctx, endpoint.CompanyAdd, o)
}

// DatasetAdd registers a dataset.
func (r *Runner) DatasetAdd(ctx context.Context, o DatasetAddOptions) error {
	return r.post(ctx, endpoint.DatasetAdd, o)
}

type postOptions interface {
	Validate() error
	Payload() (string, error)
}

func (r *Runner) post(ctx context.Context, e endpoint.Endpoint, o postOptions) error {
	if err := o.Validate(); err != nil {
		return err
	}
	body, err := o.Payload()
	if err != nil {
		return err
	}
	_, err = r.do(ctx, e, body)
	return err
}

// ── status / watch ───────────────────────────────────────────────────────────

// terminalStates are the batch and job states after which nothing changes.
var terminalStates = map[string]bool{
	"done":      true,
	"complete":  true,
	"completed": true,
	"finished":  true,
	"failed":    true,
	"error":     true,
	"cancelled": true,
	"canceled":  true,
}

// Status looks up a batch or job. With Watch set it polls every Interval
// until the status is terminal or ctx is cancelled; cancelling a watch is
// not an error.
func (r *Runner) Status(ctx context.Context, o StatusOptions) error {
	if err := o.Validate(); err != nil {
		return err
	}
	target := o.Target()
	if !o.Watch {
		_, err := r.do(ctx, target, "")
		return err
	}

	limiter := rate.NewLimiter(rate.Every(o.Interval), 1)
	for polls := 1; ; polls++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				r.logger().Info("watch stopped", zap.Int("polls", polls-1))
				return nil
			}
			return err
		}

		resp, err := r.do(ctx, target, "")
		if err != nil {
			if errors.Is(err, context.Canceled) {
				r.logger().Info("watch stopped", zap.Int("polls", polls))
				return nil
			}
			return err
		}

		state, ok := State(resp)
		if !ok {
			r.logger().Warn("response has no status field, stopping watch", zap.String("endpoint", target.String()))
			return nil
		}
		r.logger().Debug("polled status", zap.String("state", state), zap.Int("polls", polls))
		if terminalStates[strings.ToLower(state)] {
			return nil
		}
	}
}

// State extracts the "status" (or "state") field of a JSON object response.
func State(resp *client.Response) (string, bool) {
	obj, ok := resp.Body.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"status", "state"} {
		if s, ok := obj[key].(string); ok {
			return s, true
		}
	}
	return "", false
}
