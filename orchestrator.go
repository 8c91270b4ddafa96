package filmstrip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// A MediaResolver turns a job into a local media file inside the job's working directory.
type MediaResolver interface {
	Resolve(ctx context.Context, job JobDescriptor) (LocalMedia, error)
}

// A FilmstripGenerator produces the filmstrip artifacts for media, writing them into workdir.
type FilmstripGenerator interface {
	Generate(ctx context.Context, media LocalMedia, workdir string) (ArtifactSet, error)
}

// An ArtifactPublisher owns the artifact store side of a job.
type ArtifactPublisher interface {
	IsComplete(ctx context.Context, indexKey string) (bool, error)
	Publish(ctx context.Context, set ArtifactSet, indexKey string) (ArtifactIndex, error)
	Preseed(ctx context.Context, templateKey string, indexKey string) (ArtifactIndex, error)
}

type Options struct {
	Layout Layout
	// Workers bounds how many jobs run at once.
	Workers   int
	Resolver  MediaResolver
	Generator FilmstripGenerator
	Publisher ArtifactPublisher
	Logger    *zap.SugaredLogger
	// OnOutcome, if set, is called after each job finishes. Calls are serialized.
	OnOutcome func(JobOutcome)
}

// Orchestrator runs batches of jobs through check, resolve, generate and publish. A job's failure is recorded in
// the Report and never stops the rest of the batch.
type Orchestrator struct {
	layout    Layout
	workers   int
	resolver  MediaResolver
	generator FilmstripGenerator
	publisher ArtifactPublisher
	log       *zap.SugaredLogger

	onOutcome func(JobOutcome)
	outcomeMu sync.Mutex
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	if opts.Publisher == nil {
		return nil, errors.New("orchestrator: publisher is required")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		layout:    opts.Layout,
		workers:   opts.Workers,
		resolver:  opts.Resolver,
		generator: opts.Generator,
		publisher: opts.Publisher,
		log:       opts.Logger.Named("orchestrator"),
		onOutcome: opts.OnOutcome,
	}, nil
}

// Run generates and publishes a filmstrip for every job that is not already complete.
func (o *Orchestrator) Run(ctx context.Context, jobs []JobDescriptor) Report {
	return o.batch(ctx, "filmstrip", jobs, o.runJob)
}

// Preseed copies the template index to every job that is not already complete.
func (o *Orchestrator) Preseed(ctx context.Context, jobs []JobDescriptor) Report {
	return o.batch(ctx, "preseed", jobs, o.preseedJob)
}

type jobFunc func(ctx context.Context, job JobDescriptor, outcome *JobOutcome, log *zap.SugaredLogger) error

func (o *Orchestrator) batch(ctx context.Context, kind string, jobs []JobDescriptor, f jobFunc) Report {
	report := Report{
		RunID:    uuid.NewString(),
		Kind:     kind,
		Started:  time.Now(),
		Outcomes: make([]JobOutcome, len(jobs)),
	}
	log := o.log.With("run_id", report.RunID)
	log.Infof("Starting %s batch of %d jobs with %d workers", kind, len(jobs), o.workers)

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			outcome := o.execute(ctx, job, f, log)
			outcome.RunID = report.RunID
			report.Outcomes[i] = outcome
			o.notify(outcome)
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = time.Now()
	log.Infof("Finished %s batch in %s: %d completed, %d skipped, %d no content, %d failed", kind,
		report.Duration().Round(time.Millisecond), report.Count(JobCompleted), report.Count(JobSkipped),
		report.Count(JobNoContent), report.Count(JobFailed))
	return report
}

// execute runs one job and converts whatever happens, including a panic, into a JobOutcome.
func (o *Orchestrator) execute(ctx context.Context, job JobDescriptor, f jobFunc, log *zap.SugaredLogger) (outcome JobOutcome) {
	start := time.Now()
	outcome = JobOutcome{Job: job, Stage: StageCheck}
	log = log.With("entity_id", job.EntityID, "content_id", job.ContentID)

	defer func() {
		outcome.Duration = time.Since(start)
	}()
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = JobFailed
			outcome.Err = fmt.Errorf("panic: %v", r)
			log.Errorw("Job panicked", "stage", outcome.Stage, "panic", r)
		}
	}()

	err := f(ctx, job, &outcome, log)
	switch {
	case err == nil:
		if outcome.Status == "" {
			outcome.Status = JobCompleted
			log.Infow("Job completed", "artifacts", outcome.Artifacts)
		}
	case errors.Is(err, ErrNoContent):
		outcome.Status = JobNoContent
		log.Infow("Job has no content", "reason", err)
	default:
		outcome.Status = JobFailed
		outcome.Err = err
		log.Errorw("Job failed", "stage", outcome.Stage, "error", err)
	}
	return outcome
}

// skipIfComplete sets the outcome to JobSkipped if the job's index is already complete.
func (o *Orchestrator) skipIfComplete(ctx context.Context, job JobDescriptor, outcome *JobOutcome, log *zap.SugaredLogger) (bool, error) {
	outcome.Stage = StageCheck
	done, err := o.publisher.IsComplete(ctx, o.layout.IndexKey(job))
	if err != nil {
		return false, err
	}
	if done {
		outcome.Status = JobSkipped
		log.Infof("Filmstrip already exists, skipping")
	}
	return done, nil
}

func (o *Orchestrator) runJob(ctx context.Context, job JobDescriptor, outcome *JobOutcome, log *zap.SugaredLogger) error {
	if o.resolver == nil || o.generator == nil {
		return errors.New("orchestrator: resolver and generator are required to generate filmstrips")
	}
	if done, err := o.skipIfComplete(ctx, job, outcome, log); err != nil || done {
		return err
	}

	log.Infof("Processing job")
	outcome.Stage = StageWorkdir
	published := false
	err := WithWorkdir(o.layout.WorkDir(job), func(dir string) error {
		outcome.Stage = StageResolve
		media, err := o.resolver.Resolve(ctx, job)
		if err != nil {
			return err
		}
		log.Debugf("Resolved media %s", media.Path)

		outcome.Stage = StageGenerate
		set, err := o.generator.Generate(ctx, media, dir)
		if err != nil {
			return err
		}
		log.Debugf("Generated %d artifacts", len(set))

		outcome.Stage = StagePublish
		index, err := o.publisher.Publish(ctx, set, o.layout.IndexKey(job))
		if err != nil {
			return err
		}
		outcome.Artifacts = len(index.ArtifactKeys)
		outcome.Stage = StageCleanup
		published = true
		return nil
	})
	// The index is already public, so a leftover directory does not undo the job.
	var cleanupErr *CleanupError
	if published && errors.As(err, &cleanupErr) {
		log.Warnw("Published filmstrip but failed to remove working directory", "dir", cleanupErr.Dir, "error", cleanupErr.Err)
		return nil
	}
	return err
}

func (o *Orchestrator) preseedJob(ctx context.Context, job JobDescriptor, outcome *JobOutcome, log *zap.SugaredLogger) error {
	if done, err := o.skipIfComplete(ctx, job, outcome, log); err != nil || done {
		return err
	}
	outcome.Stage = StagePreseed
	index, err := o.publisher.Preseed(ctx, o.layout.PreseededIndexKey, o.layout.IndexKey(job))
	if err != nil {
		return err
	}
	outcome.Artifacts = len(index.ArtifactKeys)
	return nil
}

func (o *Orchestrator) notify(outcome JobOutcome) {
	if o.onOutcome == nil {
		return
	}
	o.outcomeMu.Lock()
	defer o.outcomeMu.Unlock()
	o.onOutcome(outcome)
}
