package filmstrip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
)

type fakeResolver struct {
	calls atomic.Int32
	fail  map[string]error
	panic string
	l     Layout
}

func (r *fakeResolver) Resolve(ctx context.Context, job JobDescriptor) (LocalMedia, error) {
	r.calls.Add(1)
	if job.ContentID == r.panic {
		panic("resolver exploded")
	}
	if err := r.fail[job.ContentID]; err != nil {
		return LocalMedia{}, err
	}
	path := r.l.InputPath(job)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return LocalMedia{}, err
	}
	return LocalMedia{Path: path}, nil
}

type fakeGenerator struct {
	calls atomic.Int32
	fail  map[string]error
}

func (g *fakeGenerator) Generate(ctx context.Context, media LocalMedia, workdir string) (ArtifactSet, error) {
	g.calls.Add(1)
	if err := g.fail[filepath.Base(workdir)]; err != nil {
		return nil, err
	}
	var set ArtifactSet
	for i := 1; i <= 2; i++ {
		name := fmt.Sprintf("filmstrip_%04d.webp", i)
		p := filepath.Join(workdir, name)
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			return nil, err
		}
		set = append(set, Artifact{Filename: name, Path: p, Sequence: i})
	}
	return set, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	complete  map[string]bool
	published map[string]ArtifactIndex
	fail      map[string]error
	checkErr  error

	publishCalls atomic.Int32
	preseedCalls atomic.Int32
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		complete:  make(map[string]bool),
		published: make(map[string]ArtifactIndex),
		fail:      make(map[string]error),
	}
}

func (p *fakePublisher) IsComplete(ctx context.Context, indexKey string) (bool, error) {
	if p.checkErr != nil {
		return false, p.checkErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.complete[indexKey], nil
}

func (p *fakePublisher) Publish(ctx context.Context, set ArtifactSet, indexKey string) (ArtifactIndex, error) {
	p.publishCalls.Add(1)
	if err := p.fail[indexKey]; err != nil {
		return ArtifactIndex{}, err
	}
	index := ArtifactIndex{ArtifactKeys: set.Keys(filepath.Dir(indexKey))}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[indexKey] = index
	p.complete[indexKey] = true
	return index, nil
}

func (p *fakePublisher) Preseed(ctx context.Context, templateKey string, indexKey string) (ArtifactIndex, error) {
	p.preseedCalls.Add(1)
	index := ArtifactIndex{ArtifactKeys: []string{"content-lab/filmstrip/pre-seeded/filmstrip_0001.webp"}}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[indexKey] = index
	return index, nil
}

func testLayout(t *testing.T) Layout {
	l := DefaultLayout
	l.WorkRoot = t.TempDir()
	return l
}

func storeJob(content string) JobDescriptor {
	return JobDescriptor{EntityID: "entity", ContentID: content, MediaType: MediaTypeVideo, Source: StoreRef{}}
}

func TestOrchestratorSkipsCompleteJobs(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)

	layout := testLayout(t)
	resolver := &fakeResolver{l: layout}
	generator := &fakeGenerator{}
	publisher := newFakePublisher()
	job := storeJob("c1")
	publisher.complete[layout.IndexKey(job)] = true

	o, err := NewOrchestrator(Options{Layout: layout, Workers: 2, Resolver: resolver, Generator: generator, Publisher: publisher})
	require.NoError(err)
	report := o.Run(context.Background(), []JobDescriptor{job})

	require.Len(report.Outcomes, 1)
	assert.Equal(JobSkipped, report.Outcomes[0].Status)
	assert.Zero(resolver.calls.Load())
	assert.Zero(generator.calls.Load())
	assert.Zero(publisher.publishCalls.Load())
	assert.NoError(report.Err())
	assert.NoDirExists(layout.WorkDir(job))
}

func TestOrchestratorRun(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)

	layout := testLayout(t)
	publisher := newFakePublisher()
	jobs := []JobDescriptor{storeJob("ok"), storeJob("resolve"), storeJob("generate"), storeJob("publish"), storeJob("empty"), storeJob("panic")}
	resolver := &fakeResolver{
		l:     layout,
		panic: "panic",
		fail: map[string]error{
			"resolve": &ResolutionError{Kind: NotFound, Source: "store"},
			"empty":   fmt.Errorf("manifest: %w", ErrNoContent),
		},
	}
	generator := &fakeGenerator{fail: map[string]error{"generate": &TranscodeError{Stage: "tile", Err: errors.New("exit status 1")}}}
	publisher.fail[layout.IndexKey(storeJob("publish"))] = &UploadError{Key: "k", Err: errors.New("denied")}

	var seen []string
	o, err := NewOrchestrator(Options{
		Layout:    layout,
		Workers:   3,
		Resolver:  resolver,
		Generator: generator,
		Publisher: publisher,
		OnOutcome: func(outcome JobOutcome) { seen = append(seen, outcome.Job.ContentID) },
	})
	require.NoError(err)
	report := o.Run(context.Background(), jobs)

	require.Len(report.Outcomes, len(jobs))
	assert.Len(seen, len(jobs))
	assert.NotEmpty(report.RunID)
	expected := []struct {
		status JobStatus
		stage  string
	}{
		{JobCompleted, StageCleanup},
		{JobFailed, StageResolve},
		{JobFailed, StageGenerate},
		{JobFailed, StagePublish},
		{JobNoContent, StageResolve},
		{JobFailed, StageResolve},
	}
	for i, e := range expected {
		outcome := report.Outcomes[i]
		assert.Equal(jobs[i], outcome.Job)
		assert.Equal(e.status, outcome.Status, outcome.Job.ContentID)
		assert.Equal(e.stage, outcome.Stage, outcome.Job.ContentID)
		assert.NoDirExists(layout.WorkDir(outcome.Job), outcome.Job.ContentID)
	}

	assert.Equal(2, report.Outcomes[0].Artifacts)
	assert.Equal([]string{
		"content-lab/filmstrip/entity/ok/filmstrip_0001.webp",
		"content-lab/filmstrip/entity/ok/filmstrip_0002.webp",
	}, publisher.published[layout.IndexKey(jobs[0])].ArtifactKeys)
	assert.True(IsResolutionKind(report.Outcomes[1].Err, NotFound))
	var te *TranscodeError
	assert.ErrorAs(report.Outcomes[2].Err, &te)
	var ue *UploadError
	assert.ErrorAs(report.Outcomes[3].Err, &ue)
	assert.Nil(report.Outcomes[4].Err)
	assert.ErrorContains(report.Outcomes[5].Err, "resolver exploded")

	assert.Equal(1, report.Count(JobCompleted))
	assert.Equal(1, report.Count(JobNoContent))
	assert.Equal(4, report.Count(JobFailed))
	assert.Error(report.Err())

	// A second run skips the completed job and retries the others
	resolver.calls.Store(0)
	report = o.Run(context.Background(), jobs[:1])
	assert.Equal(JobSkipped, report.Outcomes[0].Status)
	assert.Zero(resolver.calls.Load())
}

func TestOrchestratorCleanupFailure(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)

	layout := testLayout(t)
	publisher := newFakePublisher()
	ok, broken := storeJob("ok"), storeJob("broken")
	generator := &fakeGenerator{fail: map[string]error{"broken": &TranscodeError{Stage: "tile", Err: errors.New("exit status 1")}}}
	busy := errors.New("device busy")
	failCleanup(t, layout.WorkDir(ok), busy)

	o, err := NewOrchestrator(Options{Layout: layout, Resolver: &fakeResolver{l: layout}, Generator: generator, Publisher: publisher})
	require.NoError(err)
	report := o.Run(context.Background(), []JobDescriptor{ok, broken})

	// Published jobs stay completed when only the directory removal fails
	assert.Equal(JobCompleted, report.Outcomes[0].Status)
	assert.Equal(StageCleanup, report.Outcomes[0].Stage)
	assert.Nil(report.Outcomes[0].Err)
	assert.Len(publisher.published[layout.IndexKey(ok)].ArtifactKeys, 2)

	assert.Equal(JobFailed, report.Outcomes[1].Status)
	assert.Equal(StageGenerate, report.Outcomes[1].Stage)
}

func TestOrchestratorIgnoresStaleWorkdir(t *testing.T) {
	assert := assert_.New(t)

	layout := testLayout(t)
	job := storeJob("c1")
	stale := filepath.Join(layout.WorkDir(job), "filmstrip_0009.webp")
	require_.NoError(t, EnsureWorkdir(layout.WorkDir(job)))
	require_.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	var listed []string
	generator := generatorFunc(func(ctx context.Context, media LocalMedia, workdir string) (ArtifactSet, error) {
		entries, err := os.ReadDir(workdir)
		for _, e := range entries {
			listed = append(listed, e.Name())
		}
		return ArtifactSet{{Filename: "filmstrip_0001.webp", Path: filepath.Join(workdir, "filmstrip_0001.webp"), Sequence: 1}}, err
	})
	o, err := NewOrchestrator(Options{Layout: layout, Resolver: &fakeResolver{l: layout}, Generator: generator, Publisher: newFakePublisher()})
	require_.NoError(t, err)
	report := o.Run(context.Background(), []JobDescriptor{job})

	assert.Equal(JobCompleted, report.Outcomes[0].Status)
	assert.Equal([]string{"input.mp4"}, listed)
	assert.NoFileExists(stale)
}

type generatorFunc func(ctx context.Context, media LocalMedia, workdir string) (ArtifactSet, error)

func (f generatorFunc) Generate(ctx context.Context, media LocalMedia, workdir string) (ArtifactSet, error) {
	return f(ctx, media, workdir)
}

func TestOrchestratorCheckFailure(t *testing.T) {
	assert := assert_.New(t)

	layout := testLayout(t)
	resolver := &fakeResolver{l: layout}
	publisher := newFakePublisher()
	publisher.checkErr = &StoreReadError{Key: "index", Err: errors.New("access denied")}

	o, err := NewOrchestrator(Options{Layout: layout, Resolver: resolver, Generator: &fakeGenerator{}, Publisher: publisher})
	require_.NoError(t, err)
	report := o.Run(context.Background(), []JobDescriptor{storeJob("c1")})

	assert.Equal(JobFailed, report.Outcomes[0].Status)
	assert.Equal(StageCheck, report.Outcomes[0].Stage)
	assert.Zero(resolver.calls.Load())
}

func TestOrchestratorPreseed(t *testing.T) {
	assert := assert_.New(t)

	layout := testLayout(t)
	publisher := newFakePublisher()
	done := storeJob("done")
	publisher.complete[layout.IndexKey(done)] = true

	o, err := NewOrchestrator(Options{Layout: layout, Publisher: publisher})
	require_.NoError(t, err)
	report := o.Preseed(context.Background(), []JobDescriptor{done, storeJob("fresh")})

	assert.Equal("preseed", report.Kind)
	assert.Equal(JobSkipped, report.Outcomes[0].Status)
	assert.Equal(JobCompleted, report.Outcomes[1].Status)
	assert.Equal(1, report.Outcomes[1].Artifacts)
	assert.EqualValues(1, publisher.preseedCalls.Load())
}

func TestOrchestratorRequiresGenerator(t *testing.T) {
	layout := testLayout(t)
	o, err := NewOrchestrator(Options{Layout: layout, Publisher: newFakePublisher()})
	require_.NoError(t, err)
	report := o.Run(context.Background(), []JobDescriptor{storeJob("c1")})
	assert_.Equal(t, JobFailed, report.Outcomes[0].Status)

	_, err = NewOrchestrator(Options{Layout: layout})
	assert_.Error(t, err)
}
