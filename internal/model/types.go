package model

import (
	"maps"
	"slices"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Edge is a directed edge from Source to Target.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Network is the structural input of a run.
type Network struct {
	Nodes     []string `json:"nodes" yaml:"nodes"`
	Edges     []Edge   `json:"edges" yaml:"edges"`
	Targets   []string `json:"targets" yaml:"targets"`
	Preferred []string `json:"preferred,omitempty" yaml:"preferred,omitempty"`
}

func (n Network) Clone() Network {
	return Network{
		Nodes:     slices.Clone(n.Nodes),
		Edges:     slices.Clone(n.Edges),
		Targets:   slices.Clone(n.Targets),
		Preferred: slices.Clone(n.Preferred),
	}
}

type JobStatus string

const (
	StatusInitializing JobStatus = "initializing"
	StatusOngoing      JobStatus = "ongoing"
	StatusStopping     JobStatus = "stopping"
	StatusStopped      JobStatus = "stopped"
	StatusCompleted    JobStatus = "completed"
	StatusError        JobStatus = "error"
)

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	switch s {
	case StatusStopped, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

// ControlPath is the shortest path from a driver node to the target it controls.
type ControlPath struct {
	Driver string   `json:"driver"`
	Target string   `json:"target"`
	Nodes  []string `json:"nodes"`
	Edges  []Edge   `json:"edges"`
}

// Solution is one distinct optimal set of control nodes with its paths keyed by target id.
type Solution struct {
	ControlNodes []string               `json:"control_nodes"`
	Paths        map[string]ControlPath `json:"paths"`
}

func (s Solution) Clone() Solution {
	out := Solution{ControlNodes: slices.Clone(s.ControlNodes)}
	if s.Paths != nil {
		out.Paths = maps.Clone(s.Paths)
		for target, path := range out.Paths {
			path.Nodes = slices.Clone(path.Nodes)
			path.Edges = slices.Clone(path.Edges)
			out.Paths[target] = path
		}
	}
	return out
}

// Progress holds the counters polled while a job is running.
type Progress struct {
	Iteration                   int     `json:"iteration"`
	IterationWithoutImprovement int     `json:"iteration_without_improvement"`
	BestFitness                 float64 `json:"best_fitness"`
}

type Job struct {
	VersionedRecord
	ID         string     `json:"id"`
	Status     JobStatus  `json:"status"`
	Message    string     `json:"message,omitempty"`
	Network    Network    `json:"network"`
	Parameters Parameters `json:"parameters"`
	Progress   Progress   `json:"progress"`
	Solutions  []Solution `json:"solutions,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Clone returns a copy that shares no slices or maps with j.
func (j Job) Clone() Job {
	out := j
	out.Network = j.Network.Clone()
	if j.Solutions != nil {
		out.Solutions = make([]Solution, len(j.Solutions))
		for i, solution := range j.Solutions {
			out.Solutions[i] = solution.Clone()
		}
	}
	return out
}

// Outcome is what a finished run reports back for its job.
type Outcome struct {
	Status         JobStatus
	Message        string
	Progress       Progress
	Solutions      []Solution
	FitnessHistory []float64
}
