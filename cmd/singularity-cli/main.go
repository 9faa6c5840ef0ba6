package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/SingularityDigitalTechnologies/singularity-cli/internal/commands"
	"github.com/SingularityDigitalTechnologies/singularity-cli/internal/config"
	"github.com/SingularityDigitalTechnologies/singularity-cli/internal/metrics"
	"github.com/SingularityDigitalTechnologies/singularity-cli/internal/payload"
	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/client"
	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/endpoint"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what the root command resolves for its subcommands.
type app struct {
	cfg      config.Configuration
	logger   *zap.Logger
	recorder *metrics.Recorder
	stdin    *os.File
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, stdin *os.File, stdout, stderr io.Writer) int {
	a := &app{logger: zap.NewNop(), stdin: stdin}

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		err = commands.WithExitCode(fmt.Errorf("interrupted: %w", err), commands.ExitInterrupted)
	}

	if a.recorder != nil {
		if werr := a.recorder.WriteTextfile(a.cfg.MetricsFile); werr != nil {
			a.logger.Warn("could not write metrics", zap.String("path", a.cfg.MetricsFile), zap.Error(werr))
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	_ = a.logger.Sync()
	return int(commands.ExitCodeFor(err))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "singularity-cli",
		Short: "Singularity job-scheduling API client",
		Long: `singularity-cli sends signed requests to the Singularity API.

Credentials are read from --api-key and --secret, SINGULARITY_API_KEY and
SINGULARITY_SECRET, or ~/.singularity/config.json, in that order:

  {"api_key": "...", "secret": "..."}

Every request prints [path][status][trace] to stderr and the response body
to stdout.`,
		Example: `  singularity-cli ping
  singularity-cli batch add '[{"a": 14, "b": "27"}]' --mode pythagoras --cpus 1
  singularity-cli batch status --uuid 0b9c3bb6-7a4e-4c36-9c55-4a3a3c6f1f0e --watch`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return &commands.ValidationError{Field: "config", Err: err}
			}
			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			if cfg.MetricsFile != "" {
				a.recorder = metrics.New()
			}
			a.logger.Debug("configuration loaded",
				zap.String("api_url", cfg.APIURL),
				zap.String("config_file", cfg.ConfigFile),
				zap.Bool("api_key_set", cfg.APIKey != ""),
				zap.Bool("secret_set", cfg.Secret != ""),
				zap.Duration("timeout", cfg.Timeout),
			)
			return nil
		},
	}

	config.RegisterFlags(root.PersistentFlags())
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &commands.ValidationError{Err: err}
	})

	root.AddCommand(
		newPingCmd(a),
		newAtlasCmd(a),
		newBatchCmd(a),
		newJobCmd(a),
		newKeyCmd(a),
		newUserCmd(a),
		newCompanyCmd(a),
		newDatasetCmd(a),
		newEndpointsCmd(),
		newVersionCmd(),
	)
	return root
}

// newLogger writes human-readable logs to w at Info, or Debug when verbose.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// usageArgs reports positional argument errors as validation errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &commands.ValidationError{Err: err}
		}
		return nil
	}
}

// newGroupCmd returns a command that only holds subcommands. Without a
// subcommand it prints help; an unknown one is a usage error.
func newGroupCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
}

// runner builds a Runner for the resolved configuration. Commands acting on
// an account pass authenticated and fail early without credentials.
func (a *app) runner(cmd *cobra.Command, authenticated bool) (*commands.Runner, error) {
	creds := a.cfg.Credentials()
	if authenticated {
		if err := commands.RequireCredentials(creds); err != nil {
			return nil, err
		}
	}

	rc, err := client.NewRequestContext(a.cfg.APIURL)
	if err != nil {
		return nil, &commands.ValidationError{Field: "--api-url", Err: err}
	}

	opts := []client.Option{
		client.WithTimeout(a.cfg.Timeout),
		client.WithLogger(a.logger),
		client.WithStatusWriter(cmd.ErrOrStderr()),
	}
	if a.recorder != nil {
		opts = append(opts, client.WithObserver(a.recorder.Observe))
	}

	c, err := client.New(rc, creds, opts...)
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}

	return &commands.Runner{
		Client: c,
		Out:    cmd.OutOrStdout(),
		Format: a.cfg.Format,
		Query:  a.cfg.Query,
		Logger: a.logger,
	}, nil
}

// ── ping ─────────────────────────────────────────────────────────────────────

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the API is reachable",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd, false)
			if err != nil {
				return err
			}
			return r.Ping(cmd.Context())
		},
	}
}

// ── atlas ────────────────────────────────────────────────────────────────────

func newAtlasCmd(a *app) *cobra.Command {
	atlasCmd := newGroupCmd("atlas", "Inspect the compute atlas")
	atlasCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the status of the compute atlas",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd, true)
			if err != nil {
				return err
			}
			return r.AtlasStatus(cmd.Context())
		},
	})
	return atlasCmd
}

// ── batch / job ──────────────────────────────────────────────────────────────

func newBatchCmd(a *app) *cobra.Command {
	batchCmd := newGroupCmd("batch", "Submit and inspect batches of jobs")

	var (
		opts        commands.BatchCreateOptions
		payloadFile string
	)
	addCmd := &cobra.Command{
		Use:   "add [<jobs-json>]",
		Short: "Submit a batch of jobs",
		Long: `add submits a batch of jobs. Jobs are a JSON array of objects given inline
or read from --payload-file. Files may be JSON, JSON with comments, or YAML.`,
		Example: `  singularity-cli batch add '[{"a": 14, "b": "27"}]' --mode pythagoras --cpus 2
  singularity-cli batch add --payload-file jobs.yaml --mode pythagoras --cpus 2 --gpus 1`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd, true)
			if err != nil {
				return err
			}
			inline := ""
			if len(args) == 1 {
				inline = args[0]
			}
			jobs, err := payload.Resolve(inline, payloadFile)
			if err != nil {
				return &commands.ValidationError{Field: "jobs", Err: err}
			}
			opts.Jobs = jobs
			return r.BatchCreate(cmd.Context(), opts)
		},
	}
	addCmd.Flags().StringVar(&opts.Mode, "mode", "", "Processing mode for the batch (e.g. pythagoras)")
	addCmd.Flags().IntVar(&opts.CPUs, "cpus", 0, "Number of CPUs required for each job")
	addCmd.Flags().IntVar(&opts.GPUs, "gpus", 0, "Number of GPUs required for each job")
	addCmd.Flags().StringVar(&payloadFile, "payload-file", "", "Read jobs from a JSON, JSONC or YAML file")

	batchCmd.AddCommand(addCmd, newStatusCmd(a, endpoint.BatchInfo, "batch"))
	return batchCmd
}

func newJobCmd(a *app) *cobra.Command {
	jobCmd := newGroupCmd("job", "Inspect jobs")
	jobCmd.AddCommand(newStatusCmd(a, endpoint.JobInfo, "job"))
	return jobCmd
}

func newStatusCmd(a *app, e endpoint.Endpoint, noun string) *cobra.Command {
	opts := commands.StatusOptions{Endpoint: e}
	cmd := &cobra.Command{
		Use:   "status",
		Short: fmt.Sprintf("Show %s status, or list them when --uuid is not given", noun),
		Long: fmt.Sprintf(`status fetches one %[1]s by --uuid, or all of them without it.

With --watch it polls every --interval until the %[1]s reaches a final state
(done, failed, cancelled). Ctrl-C stops watching.`, noun),
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd, true)
			if err != nil {
				return err
			}
			return r.Status(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.UUID, "uuid", "", fmt.Sprintf("UUID of the %s", noun))
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Poll until a final state is reached")
	cmd.Flags().DurationVar(&opts.Interval, "interval", commands.DefaultWatchInterval, "Polling interval for --watch")
	return cmd
}

// ── key ──────────────────────────────────────────────────────────────────────

func newKeyCmd(a *app) *cobra.Command {
	keyCmd := newGroupCmd("key", "Manage API signing keys")

	var opts commands.GenerateKeyOptions
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Request a new API key and secret for an account email",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd, false)
			if err != nil {
				return err
			}
			return r.GenerateKey(cmd.Context(), opts)
		},
	}
	generateCmd.Flags().StringVar(&opts.Email, "email", "", "Account email address")

	keyCmd.AddCommand(generateCmd)
	return keyCmd
}

// ── user ─────────────────────────────────────────────────────────────────────

func newUserCmd(a *app) *cobra.Command {
	userCmd := newGroupCmd("user", "Administer users")

	var opts commands.UserAddOptions
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Long: `add creates a user. Without --password the password is read from the
terminal without echo.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd, true)
			if err != nil {
				return err
			}
			if opts.Password == "" {
				if err := opts.ValidateProfile(); err != nil {
					return err
				}
				pw, err := commands.ReadPassword(a.stdin, cmd.ErrOrStderr(), "Password: ")
				if err != nil {
					return err
				}
				opts.Password = pw
			}
			return r.UserAdd(cmd.Context(), opts)
		},
	}
	addCmd.Flags().StringVar(&opts.FirstName, "first-name", "", "First name")
	addCmd.Flags().StringVar(&opts.LastName, "last-name", "", "Last name")
	addCmd.Flags().StringVar(&opts.Email, "email", "", "Email address")
	addCmd.Flags().StringVar(&opts.UserType, "user-type", "", "User type (e.g. admin)")
	addCmd.Flags().StringVar(&opts.Password, "password", "", "Password (prompted when omitted)")

	userCmd.AddCommand(addCmd)
	return userCmd
}

// ── company ──────────────────────────────────────────────────────────────────

func newCompanyCmd(a *app) *cobra.Command {
	companyCmd := newGroupCmd("company", "Administer companies")

	var opts commands.CompanyAddOptions
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a company",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd, true)
			if err != nil {
				return err
			}
			return r.CompanyAdd(cmd.Context(), opts)
		},
	}
	addCmd.Flags().StringVar(&opts.Name, "name", "", "Company name")

	companyCmd.AddCommand(addCmd)
	return companyCmd
}

// ── dataset ──────────────────────────────────────────────────────────────────

func newDatasetCmd(a *app) *cobra.Command {
	datasetCmd := newGroupCmd("dataset", "Administer datasets")

	var opts commands.DatasetAddOptions
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a dataset",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd, true)
			if err != nil {
				return err
			}
			return r.DatasetAdd(cmd.Context(), opts)
		},
	}
	addCmd.Flags().StringVar(&opts.Name, "name", "", "Dataset name")
	addCmd.Flags().IntVar(&opts.PilotCount, "pilot-count", 0, "Number of pilot records")

	datasetCmd.AddCommand(addCmd)
	return datasetCmd
}

// ── endpoints ────────────────────────────────────────────────────────────────

func newEndpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:              "endpoints",
		Short:            "List the API endpoints this client knows",
		Args:             usageArgs(cobra.NoArgs),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			all := endpoint.All()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMETHOD\tPATH")
			for _, name := range endpoint.Names() {
				e := all[name]
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, e.Method, e.Path)
			}
			return w.Flush()
		},
	}
}

// ── version ──────────────────────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:              "version",
		Short:            "Print the singularity-cli version",
		Args:             usageArgs(cobra.NoArgs),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "singularity-cli %s\n", version)
		},
	}
}
