// Package ledger keeps a local record of batch runs and the outcome of every job in them.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/goldcast/filmstrip-migration"
)

var Buckets = struct {
	Metadata []byte
	Runs     []byte
	Outcomes []byte
}{
	Metadata: []byte("__metadata__"),
	Runs:     []byte("runs"),
	Outcomes: []byte("outcomes"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

var ErrRunNotFound = errors.New("run not found")

// A Run is the summary of one batch.
type Run struct {
	ID       string                      `json:"id"`
	Kind     string                      `json:"kind"`
	Started  time.Time                   `json:"started"`
	Finished time.Time                   `json:"finished"`
	Counts   map[filmstrip.JobStatus]int `json:"counts"`
}

// An Outcome is the persisted form of a filmstrip.JobOutcome.
type Outcome struct {
	EntityID  string              `json:"entity_id"`
	ContentID string              `json:"content_id"`
	Source    string              `json:"source"`
	Status    filmstrip.JobStatus `json:"status"`
	Stage     string              `json:"stage"`
	Error     string              `json:"error,omitempty"`
	Artifacts int                 `json:"artifacts"`
	Duration  time.Duration       `json:"duration"`
}

func NewOutcome(o filmstrip.JobOutcome) Outcome {
	outcome := Outcome{
		EntityID:  o.Job.EntityID,
		ContentID: o.Job.ContentID,
		Status:    o.Status,
		Stage:     o.Stage,
		Artifacts: o.Artifacts,
		Duration:  o.Duration,
	}
	if o.Job.Source != nil {
		outcome.Source = o.Job.Source.String()
	}
	if o.Err != nil {
		outcome.Error = o.Err.Error()
	}
	return outcome
}

// Ledger is a bbolt database of runs. Runs are keyed by start time so they list in order.
type Ledger struct {
	db *bbolt.DB
}

func Open(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(Buckets.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Runs); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Outcomes); err != nil {
			return err
		}

		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes != nil {
			if err := json.Unmarshal(versionBytes, &version); err != nil {
				return err
			}
		}
		if version > currentVersion {
			return fmt.Errorf("ledger version %d is newer than supported version %d", version, currentVersion)
		}
		versionBytes, err := json.Marshal(currentVersion)
		if err != nil {
			return err
		}
		return metadata.Put(MetadataKeys.Version, versionBytes)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func runKey(id string, started time.Time) []byte {
	return []byte(started.UTC().Format("20060102T150405.000000000Z") + "/" + id)
}

// RecordOutcome stores one job outcome under its run, so progress survives an interrupted batch.
func (l *Ledger) RecordOutcome(o filmstrip.JobOutcome) error {
	data, err := json.Marshal(NewOutcome(o))
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		runBucket, err := tx.Bucket(Buckets.Outcomes).CreateBucketIfNotExists([]byte(o.RunID))
		if err != nil {
			return err
		}
		return runBucket.Put([]byte(o.Job.String()), data)
	})
}

// Record stores the summary of a finished batch along with all of its outcomes.
func (l *Ledger) Record(report filmstrip.Report) error {
	run := Run{
		ID:       report.RunID,
		Kind:     report.Kind,
		Started:  report.Started,
		Finished: report.Finished,
		Counts:   make(map[filmstrip.JobStatus]int),
	}
	for _, status := range filmstrip.JobStatuses {
		run.Counts[status] = report.Count(status)
	}
	runData, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(Buckets.Runs).Put(runKey(run.ID, run.Started), runData); err != nil {
			return err
		}
		runBucket, err := tx.Bucket(Buckets.Outcomes).CreateBucketIfNotExists([]byte(run.ID))
		if err != nil {
			return err
		}
		for _, o := range report.Outcomes {
			data, err := json.Marshal(NewOutcome(o))
			if err != nil {
				return err
			}
			if err := runBucket.Put([]byte(o.Job.String()), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns up to limit runs, newest first. A limit below 1 returns every run.
func (l *Ledger) List(limit int) (runs []Run, err error) {
	err = l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(Buckets.Runs).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Outcomes returns every recorded outcome of a run, ordered by job.
func (l *Ledger) Outcomes(runID string) (outcomes []Outcome, err error) {
	err = l.db.View(func(tx *bbolt.Tx) error {
		runBucket := tx.Bucket(Buckets.Outcomes).Bucket([]byte(runID))
		if runBucket == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return runBucket.ForEach(func(k, v []byte) error {
			var outcome Outcome
			if err := json.Unmarshal(v, &outcome); err != nil {
				return fmt.Errorf("decode outcome %s: %w", k, err)
			}
			outcomes = append(outcomes, outcome)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}
