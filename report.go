package filmstrip

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

type JobStatus string

const (
	JobCompleted JobStatus = "completed"
	// JobSkipped means the job's index was already complete; nothing was done.
	JobSkipped   JobStatus = "skipped"
	JobNoContent JobStatus = "no_content"
	JobFailed    JobStatus = "failed"
)

var JobStatuses = []JobStatus{JobCompleted, JobSkipped, JobNoContent, JobFailed}

// Stages of a job, recorded on the outcome so a failure can be attributed.
const (
	StageCheck    = "check"
	StageWorkdir  = "workdir"
	StageResolve  = "resolve"
	StageGenerate = "generate"
	StagePublish  = "publish"
	StagePreseed  = "preseed"
	StageCleanup  = "cleanup"
)

// JobOutcome is the result of one job. Err is only set for JobFailed, and Stage names where the job stopped.
type JobOutcome struct {
	RunID     string
	Job       JobDescriptor
	Status    JobStatus
	Stage     string
	Err       error
	Artifacts int
	Duration  time.Duration
}

// Report collects the outcomes of a batch, in the same order as the input jobs.
type Report struct {
	RunID    string
	Kind     string
	Started  time.Time
	Finished time.Time
	Outcomes []JobOutcome
}

func (r Report) Count(status JobStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (r Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Err combines the errors of every failed job, or returns nil if no job failed. A batch with failed jobs is still a
// finished batch; callers decide whether this matters.
func (r Report) Err() error {
	var result *multierror.Error
	for _, o := range r.Outcomes {
		if o.Status == JobFailed {
			result = multierror.Append(result, fmt.Errorf("%s (%s): %w", o.Job, o.Stage, o.Err))
		}
	}
	return result.ErrorOrNil()
}
