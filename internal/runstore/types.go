package runstore

import (
	"time"

	"github.com/google/uuid"
)

// Record is one persisted benchmark run: the launch that was performed, the
// resolved layout it ran with and the outcome.
type Record struct {
	ID              uuid.UUID     `json:"id"`
	Label           string        `json:"label"`
	Command         []string      `json:"command"`
	LauncherVariant string        `json:"launcher_variant"`
	Tasks           int           `json:"tasks"`
	Nodes           int           `json:"nodes"`
	TasksPerNode    int           `json:"tasks_per_node"`
	ExitCode        int           `json:"exit_code"`
	Stdout          string        `json:"stdout"`
	Stderr          string        `json:"stderr"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}
