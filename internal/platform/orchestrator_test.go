package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"drivernet/internal/model"
	"drivernet/internal/network"
	"drivernet/internal/storage"
	"drivernet/internal/telemetry"
)

func exampleNetwork() model.Network {
	return model.Network{
		Nodes: []string{"A", "B", "C", "D"},
		Edges: []model.Edge{
			{Source: "A", Target: "C"},
			{Source: "B", Target: "C"},
			{Source: "C", Target: "D"},
		},
		Targets:   []string{"D"},
		Preferred: []string{"A", "B"},
	}
}

// forkNetwork extends the example with a second target fed by C, so within
// one hop {C} is the only single-driver solution.
func forkNetwork() model.Network {
	net := exampleNetwork()
	net.Nodes = append(net.Nodes, "E")
	net.Edges = append(net.Edges, model.Edge{Source: "C", Target: "E"})
	net.Targets = []string{"D", "E"}
	return net
}

func testParameters() model.Parameters {
	params := model.DefaultParameters()
	params.MaximumPathLength = 3
	params.PopulationSize = 20
	params.RandomGenesPerChromosome = 1
	params.MaximumIterations = 30
	params.MaximumIterationsWithoutImprovement = 30
	params.Workers = 2
	return params
}

type harness struct {
	tracker      *storage.JobTracker
	orchestrator *Orchestrator
}

func newHarness(t *testing.T, reporter func(*storage.JobTracker) JobReporter) *harness {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	tracker := storage.NewJobTracker(store)
	var rep JobReporter = tracker
	if reporter != nil {
		rep = reporter(tracker)
	}
	o, err := NewOrchestrator(OrchestratorConfig{
		State:    tracker,
		Reporter: rep,
		Metrics:  telemetry.NewMetrics(prometheus.NewRegistry()),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return &harness{tracker: tracker, orchestrator: o}
}

func (h *harness) run(t *testing.T, net model.Network, params model.Parameters) (model.Job, RunResult, error) {
	t.Helper()
	ctx := context.Background()
	job, err := h.tracker.Create(ctx, net, params)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	result, runErr := h.orchestrator.Run(ctx, job.ID, net, params)
	return job, result, runErr
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	if _, err := NewOrchestrator(OrchestratorConfig{}); err == nil {
		t.Fatal("expected error without state provider")
	}
	store := storage.NewMemoryStore()
	tracker := storage.NewJobTracker(store)
	if _, err := NewOrchestrator(OrchestratorConfig{State: tracker}); err == nil {
		t.Fatal("expected error without reporter")
	}
}

func TestRunExampleFindsControlNodeC(t *testing.T) {
	h := newHarness(t, nil)
	params := testParameters()
	params.PopulationSize = 150
	params.PercentageRandom = 0.5
	params.PercentageElite = 0.1
	params.MutationType = model.MutationRandomAncestor
	params.MaximumIterations = 5
	params.MaximumIterationsWithoutImprovement = 5

	job, result, err := h.run(t, exampleNetwork(), params)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != model.StatusCompleted {
		t.Fatalf("single target never improves, expected completed, got %s (%s)", result.Status, result.Message)
	}

	allowed := []string{"A", "B", "C", "D"}
	var foundC bool
	for _, solution := range result.Solutions {
		if len(solution.ControlNodes) != 1 || !slices.Contains(allowed, solution.ControlNodes[0]) {
			t.Fatalf("unexpected solution: %+v", solution)
		}
		path := solution.Paths["D"]
		if path.Driver != solution.ControlNodes[0] || path.Nodes[len(path.Nodes)-1] != "D" {
			t.Fatalf("path does not lead from driver to D: %+v", path)
		}
		if solution.ControlNodes[0] == "C" {
			foundC = true
			if !reflect.DeepEqual(path.Nodes, []string{"C", "D"}) {
				t.Fatalf("unexpected path for C: %+v", path.Nodes)
			}
			if !reflect.DeepEqual(path.Edges, []model.Edge{{Source: "C", Target: "D"}}) {
				t.Fatalf("unexpected edges for C: %+v", path.Edges)
			}
		}
	}
	if !foundC {
		t.Fatalf("expected {C} among the optimal solutions, got %+v", result.Solutions)
	}

	stored, err := h.tracker.Job(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if stored.Status != model.StatusCompleted || len(stored.Solutions) != len(result.Solutions) {
		t.Fatalf("unexpected stored job: %s with %d solutions", stored.Status, len(stored.Solutions))
	}
}

func TestRunConvergesToUniqueDriver(t *testing.T) {
	h := newHarness(t, nil)
	params := testParameters()
	params.MaximumPathLength = 1
	params.MaximumIterationsWithoutImprovement = 10

	_, result, err := h.run(t, forkNetwork(), params)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Solutions) != 1 || !reflect.DeepEqual(result.Solutions[0].ControlNodes, []string{"C"}) {
		t.Fatalf("expected the single solution {C}, got %+v", result.Solutions)
	}
	if got := result.Solutions[0].Paths["E"].Nodes; !reflect.DeepEqual(got, []string{"C", "E"}) {
		t.Fatalf("unexpected path to E: %v", got)
	}
	if result.Progress.BestFitness != 1 {
		t.Fatalf("expected fitness 1, got %f", result.Progress.BestFitness)
	}
	for i := 1; i < len(result.FitnessHistory); i++ {
		if result.FitnessHistory[i] < result.FitnessHistory[i-1] {
			t.Fatalf("best fitness regressed at %d: %v", i, result.FitnessHistory)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	params := testParameters()
	params.MaximumPathLength = 2
	params.RandomSeed = 42

	_, first, err := newHarness(t, nil).run(t, forkNetwork(), params)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	params.Workers = 5
	_, second, err := newHarness(t, nil).run(t, forkNetwork(), params)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first.FitnessHistory, second.FitnessHistory) {
		t.Fatalf("trajectories differ:\n%v\n%v", first.FitnessHistory, second.FitnessHistory)
	}
	if !reflect.DeepEqual(first.Solutions, second.Solutions) || first.Progress != second.Progress {
		t.Fatalf("final solutions differ:\n%+v\n%+v", first, second)
	}
}

func TestRunRejectsUnknownNode(t *testing.T) {
	h := newHarness(t, nil)
	net := exampleNetwork()
	net.Edges = append(net.Edges, model.Edge{Source: "X", Target: "D"})

	job, result, err := h.run(t, net, testParameters())
	if !errors.Is(err, network.ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
	if result.Status != model.StatusError {
		t.Fatalf("expected error status, got %s", result.Status)
	}
	stored, loadErr := h.tracker.Job(context.Background(), job.ID)
	if loadErr != nil {
		t.Fatalf("load job: %v", loadErr)
	}
	if stored.Status != model.StatusError || stored.Message == "" || len(stored.Solutions) != 0 {
		t.Fatalf("unexpected stored job: %+v", stored)
	}
}

func TestRunRejectsInvalidParameters(t *testing.T) {
	h := newHarness(t, nil)
	params := testParameters()
	params.PopulationSize = 1

	job, _, err := h.run(t, exampleNetwork(), params)
	if !errors.Is(err, model.ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
	if status, _ := h.tracker.Status(context.Background(), job.ID); status != model.StatusError {
		t.Fatalf("expected error status, got %s", status)
	}
}

func TestRunFinalStatusRules(t *testing.T) {
	cases := []struct {
		name          string
		maxIterations int
		maxStale      int
		wantStatus    model.JobStatus
		wantIteration int
	}{
		{name: "both limits together", maxIterations: 4, maxStale: 4, wantStatus: model.StatusCompleted, wantIteration: 4},
		{name: "iteration limit only", maxIterations: 3, maxStale: 10, wantStatus: model.StatusStopped, wantIteration: 3},
		{name: "stagnation limit only", maxIterations: 50, maxStale: 2, wantStatus: model.StatusStopped, wantIteration: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			params := testParameters()
			params.MaximumIterations = tc.maxIterations
			params.MaximumIterationsWithoutImprovement = tc.maxStale

			// every single-target chromosome has fitness 1, so nothing ever improves
			_, result, err := h.run(t, exampleNetwork(), params)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if result.Status != tc.wantStatus || result.Progress.Iteration != tc.wantIteration {
				t.Fatalf("got %s at iteration %d, want %s at %d", result.Status, result.Progress.Iteration, tc.wantStatus, tc.wantIteration)
			}
			if len(result.FitnessHistory) != tc.wantIteration+1 {
				t.Fatalf("expected one history entry per generation plus the initial one, got %d", len(result.FitnessHistory))
			}
		})
	}
}

// hookReporter runs hook after every progress report.
type hookReporter struct {
	*storage.JobTracker
	hook func(ctx context.Context, id string, progress model.Progress)
}

func (r hookReporter) ReportProgress(ctx context.Context, id string, progress model.Progress) error {
	if err := r.JobTracker.ReportProgress(ctx, id, progress); err != nil {
		return err
	}
	r.hook(ctx, id, progress)
	return nil
}

func TestRunStopsOnExternalRequest(t *testing.T) {
	h := newHarness(t, func(tracker *storage.JobTracker) JobReporter {
		return hookReporter{JobTracker: tracker, hook: func(ctx context.Context, id string, progress model.Progress) {
			if progress.Iteration == 2 {
				_ = tracker.RequestStop(ctx, id)
			}
		}}
	})
	job, result, err := h.run(t, forkNetwork(), testParameters())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != model.StatusStopped || result.Progress.Iteration != 2 {
		t.Fatalf("expected stop at iteration 2, got %s at %d", result.Status, result.Progress.Iteration)
	}
	if len(result.Solutions) == 0 {
		t.Fatal("a stopped run still reports its best solutions")
	}
	stored, _ := h.tracker.Job(context.Background(), job.ID)
	if stored.Status != model.StatusStopped {
		t.Fatalf("expected stored status stopped, got %s", stored.Status)
	}
}

func TestRunStopsSilentlyWhenJobDeleted(t *testing.T) {
	h := newHarness(t, func(tracker *storage.JobTracker) JobReporter {
		return hookReporter{JobTracker: tracker, hook: func(ctx context.Context, id string, progress model.Progress) {
			if progress.Iteration == 3 {
				_ = tracker.Delete(ctx, id)
			}
		}}
	})
	job, result, err := h.run(t, forkNetwork(), testParameters())
	if err != nil {
		t.Fatalf("deletion must not be reported as failure: %v", err)
	}
	if !result.Aborted || result.Progress.Iteration != 3 || result.Solutions != nil {
		t.Fatalf("unexpected result after deletion: %+v", result)
	}
	if _, err := h.tracker.Job(context.Background(), job.ID); !errors.Is(err, storage.ErrJobNotFound) {
		t.Fatalf("expected deleted job to stay deleted, got %v", err)
	}
}

// deletingReporter removes the job right before the named state change
// reaches the tracker.
type deletingReporter struct {
	*storage.JobTracker
	before string
}

func (r deletingReporter) Start(ctx context.Context, id string) error {
	if r.before == "start" {
		_ = r.JobTracker.Delete(ctx, id)
	}
	return r.JobTracker.Start(ctx, id)
}

func (r deletingReporter) Finish(ctx context.Context, id string, outcome model.Outcome) error {
	if r.before == "finish" {
		_ = r.JobTracker.Delete(ctx, id)
	}
	return r.JobTracker.Finish(ctx, id, outcome)
}

func TestRunStopsSilentlyWhenJobDeletedBeforeFinish(t *testing.T) {
	h := newHarness(t, func(tracker *storage.JobTracker) JobReporter {
		return deletingReporter{JobTracker: tracker, before: "finish"}
	})
	params := testParameters()
	job, result, err := h.run(t, forkNetwork(), params)
	if err != nil {
		t.Fatalf("deletion must not be reported as failure: %v", err)
	}
	if !result.Aborted || result.Progress.Iteration == 0 || result.Solutions != nil {
		t.Fatalf("unexpected result after deletion: %+v", result)
	}
	if _, err := h.tracker.Job(context.Background(), job.ID); !errors.Is(err, storage.ErrJobNotFound) {
		t.Fatalf("expected deleted job to stay deleted, got %v", err)
	}
}

func TestRunStopsSilentlyWhenJobDeletedBeforeStart(t *testing.T) {
	h := newHarness(t, func(tracker *storage.JobTracker) JobReporter {
		return deletingReporter{JobTracker: tracker, before: "start"}
	})
	_, result, err := h.run(t, forkNetwork(), testParameters())
	if err != nil {
		t.Fatalf("deletion must not be reported as failure: %v", err)
	}
	if !result.Aborted || result.Progress.Iteration != 0 {
		t.Fatalf("unexpected result after deletion: %+v", result)
	}
}

func TestRunReturnsOnCancelledContext(t *testing.T) {
	h := newHarness(t, nil)
	params := testParameters()
	job, err := h.tracker.Create(context.Background(), exampleNetwork(), params)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := h.orchestrator.Run(ctx, job.ID, exampleNetwork(), params)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !result.Aborted {
		t.Fatalf("expected aborted result, got %+v", result)
	}
	stored, _ := h.tracker.Job(context.Background(), job.ID)
	if stored.Status.Finished() || len(stored.Solutions) != 0 {
		t.Fatalf("cancelled run must not write results: %+v", stored)
	}
}

func TestRunSkipsJobThatIsNoLongerLive(t *testing.T) {
	h := newHarness(t, nil)
	params := testParameters()
	job, err := h.tracker.Create(context.Background(), exampleNetwork(), params)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := h.tracker.Delete(context.Background(), job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	result, err := h.orchestrator.Run(context.Background(), job.ID, exampleNetwork(), params)
	if err != nil || !result.Aborted {
		t.Fatalf("expected silent abort, got %+v, %v", result, err)
	}
}

func TestFinalStatus(t *testing.T) {
	params := model.Parameters{MaximumIterations: 10, MaximumIterationsWithoutImprovement: 4}
	if status, _ := finalStatus(model.Progress{Iteration: 10, IterationWithoutImprovement: 4}, params, false); status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", status)
	}
	if status, msg := finalStatus(model.Progress{Iteration: 6, IterationWithoutImprovement: 4}, params, false); status != model.StatusStopped || msg == "" {
		t.Fatalf("expected stopped by stagnation, got %s %q", status, msg)
	}
	if status, msg := finalStatus(model.Progress{Iteration: 10, IterationWithoutImprovement: 4}, params, true); status != model.StatusStopped || msg != "stop requested" {
		t.Fatalf("stop request wins, got %s %q", status, msg)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(exampleNetwork(), testParameters()); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}
	net := exampleNetwork()
	net.Targets = []string{"Z"}
	if err := Validate(net, testParameters()); !errors.Is(err, network.ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
	params := testParameters()
	params.CrossoverType = "uniform"
	if err := Validate(exampleNetwork(), params); !errors.Is(err, model.ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
}
