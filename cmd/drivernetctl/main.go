package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"drivernet/internal/evo"
	"drivernet/internal/storage"
	"drivernet/pkg/drivernet"
)

const progressInterval = 250 * time.Millisecond

type rootOptions struct {
	storeKind  string
	dbPath     string
	logLevel   string
	jsonOutput bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "drivernetctl",
		Short:         "Find small sets of driver nodes that control the targets of a directed network",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	flags.StringVar(&opts.dbPath, "db-path", "drivernet.db", "sqlite database path")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newRunCommand(opts),
		newValidateCommand(),
		newStatusCommand(opts),
		newSolutionsCommand(opts),
		newHistoryCommand(opts),
		newJobsCommand(opts),
		newStopCommand(opts),
		newDeleteCommand(opts),
		newStrategiesCommand(),
	)
	return root
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func (o *rootOptions) client(cmd *cobra.Command) (*drivernet.Client, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), o.logLevel)
	if err != nil {
		return nil, err
	}
	client, err := drivernet.New(drivernet.Options{
		StoreKind: o.storeKind,
		DBPath:    o.dbPath,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// explainMissingJob points at the store when a job id cannot be found in a
// store that does not persist between commands.
func (o *rootOptions) explainMissingJob(err error) error {
	if err == nil || o.storeKind != "memory" || !errors.Is(err, drivernet.ErrJobNotFound) {
		return err
	}
	return fmt.Errorf("%w (the memory store keeps jobs only for one command; use --store sqlite with a sqlite build)", err)
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		configPath  string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an optimization job described by a YAML job file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := loadRunRequestFromConfig(configPath)
			if err != nil {
				return err
			}
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			if metricsAddr != "" {
				server := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						fmt.Fprintf(cmd.ErrOrStderr(), "metrics server: %v\n", err)
					}
				}()
				defer func() {
					_ = server.Close()
				}()
			}

			jobID, err := client.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var summary drivernet.JobSummary
			if !opts.jsonOutput && isTerminal(out) {
				summary, err = executeWithProgress(cmd.Context(), client, jobID, out)
			} else {
				summary, err = client.Execute(cmd.Context(), jobID)
			}
			if err != nil {
				if summary.Status == drivernet.StatusError {
					printSummary(out, summary)
				}
				return err
			}

			if opts.jsonOutput {
				return writeJSON(out, summary)
			}
			printSummary(out, summary)
			printSolutions(out, summary.Solutions)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML job file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// executeWithProgress runs the job in the background and redraws its
// counters on one terminal line until it finishes.
func executeWithProgress(ctx context.Context, client *drivernet.Client, jobID string, out io.Writer) (drivernet.JobSummary, error) {
	type outcome struct {
		summary drivernet.JobSummary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		summary, err := client.Execute(ctx, jobID)
		done <- outcome{summary: summary, err: err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case res := <-done:
			fmt.Fprint(out, "\r\033[K")
			return res.summary, res.err
		case <-ticker.C:
			status, err := client.Status(ctx, jobID)
			if err != nil {
				continue
			}
			fmt.Fprintf(out, "\r\033[Kiteration %d (no improvement %d) best fitness %.4f",
				status.Progress.Iteration, status.Progress.IterationWithoutImprovement, status.Progress.BestFitness)
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newValidateCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a YAML job file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := loadRunRequestFromConfig(configPath)
			if err != nil {
				return err
			}
			client, err := drivernet.New(drivernet.Options{StoreKind: "memory"})
			if err != nil {
				return err
			}
			if err := client.Validate(req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %d nodes, %d edges, %d targets\n",
				len(req.Network.Nodes), len(req.Network.Edges), len(req.Network.Targets))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML job file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

const persistentStoreHelp = `Jobs are looked up in the configured store. The memory store only lives
as long as one command, so acting on a job from a separate invocation needs
--store sqlite in a binary built with -tags sqlite.`

// jobCommand builds a command that acts on the job named by --job-id.
func jobCommand(opts *rootOptions, use, short string, action func(cmd *cobra.Command, client *drivernet.Client, jobID string) error) *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  short + ".\n\n" + persistentStoreHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()
			return opts.explainMissingJob(action(cmd, client, jobID))
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "job id")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return jobCommand(opts, "status", "Show the status and progress of a job", func(cmd *cobra.Command, client *drivernet.Client, jobID string) error {
		summary, err := client.Status(cmd.Context(), jobID)
		if err != nil {
			return err
		}
		if opts.jsonOutput {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		printSummary(cmd.OutOrStdout(), summary)
		return nil
	})
}

func newSolutionsCommand(opts *rootOptions) *cobra.Command {
	return jobCommand(opts, "solutions", "Show the control paths of a finished job", func(cmd *cobra.Command, client *drivernet.Client, jobID string) error {
		solutions, err := client.Solutions(cmd.Context(), jobID)
		if err != nil {
			return err
		}
		if opts.jsonOutput {
			return writeJSON(cmd.OutOrStdout(), solutions)
		}
		printSolutions(cmd.OutOrStdout(), solutions)
		return nil
	})
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return jobCommand(opts, "history", "Show the best fitness of every generation of a finished job", func(cmd *cobra.Command, client *drivernet.Client, jobID string) error {
		history, err := client.FitnessHistory(cmd.Context(), jobID)
		if err != nil {
			return err
		}
		if opts.jsonOutput {
			return writeJSON(cmd.OutOrStdout(), history)
		}
		printHistory(cmd.OutOrStdout(), history)
		return nil
	})
}

func newStopCommand(opts *rootOptions) *cobra.Command {
	return jobCommand(opts, "stop", "Ask a running job to stop after its current generation", func(cmd *cobra.Command, client *drivernet.Client, jobID string) error {
		if err := client.Stop(cmd.Context(), jobID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stop requested job_id=%s\n", jobID)
		return nil
	})
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return jobCommand(opts, "delete", "Delete a job and its results", func(cmd *cobra.Command, client *drivernet.Client, jobID string) error {
		if err := client.Delete(cmd.Context(), jobID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted job_id=%s\n", jobID)
		return nil
	})
}

func newJobsCommand(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		status string
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List stored jobs, newest first",
		Long:  "List stored jobs, newest first.\n\n" + persistentStoreHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()
			jobs, err := client.Jobs(cmd.Context(), drivernet.JobsRequest{Limit: limit, Status: drivernet.JobStatus(status)})
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), jobs)
			}
			printJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of jobs to list")
	cmd.Flags().StringVar(&status, "status", "", "only list jobs in this status")
	return cmd
}

func newStrategiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the available crossover and mutation types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "crossover: %s\n", strings.Join(evo.ListCrossovers(), ", "))
			fmt.Fprintf(out, "mutation: %s\n", strings.Join(evo.ListMutations(), ", "))
			return nil
		},
	}
}
