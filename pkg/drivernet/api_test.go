package drivernet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func forkRequest() RunRequest {
	params := DefaultParameters()
	params.MaximumPathLength = 1
	params.PopulationSize = 20
	params.RandomGenesPerChromosome = 1
	params.MaximumIterations = 20
	params.MaximumIterationsWithoutImprovement = 8
	params.Workers = 2
	return RunRequest{
		Network: Network{
			Nodes: []string{"A", "B", "C", "D", "E"},
			Edges: []Edge{
				{Source: "A", Target: "C"},
				{Source: "B", Target: "C"},
				{Source: "C", Target: "D"},
				{Source: "C", Target: "E"},
			},
			Targets:   []string{"D", "E"},
			Preferred: []string{"A", "B"},
		},
		Parameters: params,
	}
}

func TestClientRunStatusAndSolutions(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	summary, err := client.Run(ctx, forkRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.JobID == "" {
		t.Fatal("expected job id")
	}
	if !summary.Status.Finished() || summary.Status == StatusError {
		t.Fatalf("unexpected final status: %s (%s)", summary.Status, summary.Message)
	}
	if len(summary.FitnessHistory) != summary.Progress.Iteration+1 {
		t.Fatalf("history length %d does not match %d iterations", len(summary.FitnessHistory), summary.Progress.Iteration)
	}

	status, err := client.Status(ctx, summary.JobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != summary.Status || status.Progress != summary.Progress {
		t.Fatalf("stored status %+v does not match run summary %+v", status, summary)
	}

	solutions, err := client.Solutions(ctx, summary.JobID)
	if err != nil {
		t.Fatalf("solutions: %v", err)
	}
	if !reflect.DeepEqual(solutions, summary.Solutions) {
		t.Fatalf("stored solutions differ:\n%+v\n%+v", solutions, summary.Solutions)
	}
	if len(solutions) != 1 || !reflect.DeepEqual(solutions[0].ControlNodes, []string{"C"}) {
		t.Fatalf("expected {C}, got %+v", solutions)
	}

	history, err := client.FitnessHistory(ctx, summary.JobID)
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if !reflect.DeepEqual(history, summary.FitnessHistory) {
		t.Fatalf("stored history differs: %v vs %v", history, summary.FitnessHistory)
	}
}

func TestClientRunAppliesDefaults(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	req := forkRequest()
	req.Parameters.PopulationSize = 0
	req.Parameters.CrossoverType = ""
	req.Parameters.MutationType = ""
	req.Parameters.MaximumIterations = 0
	req.Parameters.MaximumIterationsWithoutImprovement = 0
	if err := client.Validate(req); err != nil {
		t.Fatalf("defaults should make the request valid: %v", err)
	}

	jobID, err := client.Submit(ctx, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job, err := client.tracker.Job(ctx, jobID)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	def := DefaultParameters()
	if job.Parameters.PopulationSize != def.PopulationSize || job.Parameters.CrossoverType != def.CrossoverType {
		t.Fatalf("defaults not applied: %+v", job.Parameters)
	}
	if job.Status != StatusInitializing {
		t.Fatalf("submitted job should be initializing, got %s", job.Status)
	}
}

func TestClientRunRecordsValidationErrors(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	req := forkRequest()
	req.Parameters.PercentageElite = 0.8
	req.Parameters.PercentageRandom = 0.8
	if err := client.Validate(req); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("validate: expected ErrInvalidParameters, got %v", err)
	}

	summary, err := client.Run(ctx, req)
	if !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("run: expected ErrInvalidParameters, got %v", err)
	}
	status, statusErr := client.Status(ctx, summary.JobID)
	if statusErr != nil {
		t.Fatalf("status: %v", statusErr)
	}
	if status.Status != StatusError || status.Message == "" {
		t.Fatalf("expected recorded error, got %+v", status)
	}
}

func TestClientSolutionsRequireFinishedJob(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	jobID, err := client.Submit(ctx, forkRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := client.Solutions(ctx, jobID); err == nil {
		t.Fatal("expected error for unfinished job")
	}
}

func TestClientStopBeforeExecute(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	jobID, err := client.Submit(ctx, forkRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := client.Stop(ctx, jobID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := client.Execute(ctx, jobID); err == nil {
		t.Fatal("a job that is no longer initializing cannot be executed")
	}
	status, _ := client.Status(ctx, jobID)
	if status.Status != StatusStopping {
		t.Fatalf("expected stopping, got %s", status.Status)
	}
}

func TestClientJobsAndDelete(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	first, err := client.Run(ctx, forkRequest())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	pending, err := client.Submit(ctx, forkRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	jobs, err := client.Jobs(ctx, JobsRequest{})
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	initializing, err := client.Jobs(ctx, JobsRequest{Status: StatusInitializing})
	if err != nil {
		t.Fatalf("jobs by status: %v", err)
	}
	if len(initializing) != 1 || initializing[0].JobID != pending {
		t.Fatalf("unexpected initializing jobs: %+v", initializing)
	}
	limited, err := client.Jobs(ctx, JobsRequest{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one job with limit, got %d (%v)", len(limited), err)
	}
	if _, err := client.Jobs(ctx, JobsRequest{Limit: -1}); err == nil {
		t.Fatal("expected error for negative limit")
	}

	if err := client.Delete(ctx, first.JobID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.Status(ctx, first.JobID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound after delete, got %v", err)
	}
	if err := client.Delete(ctx, first.JobID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound on second delete, got %v", err)
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	if _, err := New(Options{StoreKind: "postgres"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}
