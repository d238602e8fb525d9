package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"drivernet/pkg/drivernet"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, s drivernet.JobSummary) {
	fmt.Fprintf(w, "job_id=%s status=%s\n", s.JobID, s.Status)
	if s.Message != "" {
		fmt.Fprintf(w, "message=%s\n", s.Message)
	}
	fmt.Fprintf(w, "iterations=%s without_improvement=%s best_fitness=%s\n",
		humanize.Comma(int64(s.Progress.Iteration)),
		humanize.Comma(int64(s.Progress.IterationWithoutImprovement)),
		humanize.FtoaWithDigits(s.Progress.BestFitness, 4),
	)
	if !s.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "updated=%s\n", humanize.RelTime(s.UpdatedAt, time.Now(), "ago", "from now"))
	}
}

func printSolutions(w io.Writer, solutions []drivernet.Solution) {
	fmt.Fprintf(w, "%s distinct %s\n", humanize.Comma(int64(len(solutions))), plural(len(solutions), "solution", "solutions"))
	for i, solution := range solutions {
		fmt.Fprintf(w, "solution %d: control_nodes=%s\n", i+1, strings.Join(solution.ControlNodes, ","))
		for _, target := range sortedTargets(solution) {
			path := solution.Paths[target]
			if len(path.Nodes) == 0 {
				fmt.Fprintf(w, "  %s <- %s: unreachable\n", target, path.Driver)
				continue
			}
			fmt.Fprintf(w, "  %s <- %s: %s\n", target, path.Driver, strings.Join(path.Nodes, " -> "))
		}
	}
}

func printHistory(w io.Writer, history []float64) {
	for i, fitness := range history {
		fmt.Fprintf(w, "%d\t%s\n", i, humanize.FtoaWithDigits(fitness, 6))
	}
}

func printJobs(w io.Writer, jobs []drivernet.JobSummary) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "no jobs")
		return
	}
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s iterations\tbest=%s\t%s\n",
			job.JobID,
			job.Status,
			humanize.Comma(int64(job.Progress.Iteration)),
			humanize.FtoaWithDigits(job.Progress.BestFitness, 4),
			humanize.Time(job.CreatedAt),
		)
	}
}

func sortedTargets(solution drivernet.Solution) []string {
	var targets []string
	for target := range solution.Paths {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	return targets
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
