package filmstrip

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goldcast/filmstrip-migration/objectstore"
)

// An ObjectFetcher copies one object from the artifact store to a local file.
type ObjectFetcher interface {
	Fetch(ctx context.Context, key string, path string) error
}

// A StreamDownloader reconstructs a segmented stream in dir and returns the path of the local manifest. It returns
// ErrNoContent if the manifest lists no segments.
type StreamDownloader interface {
	Download(ctx context.Context, manifestURL string, dir string) (string, error)
}

// Resolver turns a JobDescriptor into a single local media file, dispatching on the job's SourceDescriptor.
type Resolver struct {
	layout    Layout
	objects   ObjectFetcher
	platforms *PlatformRegistry
	streams   StreamDownloader
	log       *zap.SugaredLogger
}

func NewResolver(layout Layout, objects ObjectFetcher, platforms *PlatformRegistry, streams StreamDownloader, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		layout:    layout,
		objects:   objects,
		platforms: platforms,
		streams:   streams,
		log:       log.Named("resolver"),
	}
}

// Resolve fetches the job's media into its working directory, creating the directory if needed.
func (r *Resolver) Resolve(ctx context.Context, job JobDescriptor) (LocalMedia, error) {
	if err := job.validate(); err != nil {
		return LocalMedia{}, &ResolutionError{Kind: UnsupportedSource, Source: "job", Err: err}
	}
	dir := r.layout.WorkDir(job)
	if err := EnsureWorkdir(dir); err != nil {
		return LocalMedia{}, err
	}
	log := r.log.With("entity_id", job.EntityID, "content_id", job.ContentID, "source", job.Source.String())

	switch source := job.Source.(type) {
	case StoreRef:
		return r.resolveStore(ctx, job, source, log)
	case URLImport:
		return r.resolveImport(ctx, source, dir, log)
	case SegmentedStream:
		return r.resolveStream(ctx, job, source, dir, log)
	default:
		return LocalMedia{}, &ResolutionError{
			Kind:   UnsupportedSource,
			Source: job.Source.String(),
			Err:    fmt.Errorf("unhandled source kind %q", job.Source.Kind()),
		}
	}
}

func (r *Resolver) resolveStore(ctx context.Context, job JobDescriptor, source StoreRef, log *zap.SugaredLogger) (LocalMedia, error) {
	key := source.Key
	if key == "" {
		var err error
		if key, err = r.layout.SourceKey(job); err != nil {
			return LocalMedia{}, &ResolutionError{Kind: UnsupportedSource, Source: source.String(), Err: err}
		}
	}
	target := r.layout.InputPath(job)
	log.Debugf("Fetching %s to %s", key, target)
	if err := r.objects.Fetch(ctx, key, target); err != nil {
		kind := TransferFailure
		if errors.Is(err, objectstore.ErrNotFound) {
			kind = NotFound
		}
		return LocalMedia{}, &ResolutionError{Kind: kind, Source: source.String(), Err: err}
	}
	return LocalMedia{Path: target}, nil
}

func (r *Resolver) resolveImport(ctx context.Context, source URLImport, dir string, log *zap.SugaredLogger) (LocalMedia, error) {
	downloader, err := r.platforms.Lookup(source.Platform)
	if err != nil {
		return LocalMedia{}, &ResolutionError{Kind: UnsupportedSource, Source: source.String(), Err: err}
	}
	log.Debugf("Importing %s", source.URL)
	media, err := downloader.Download(ctx, source, dir)
	if err != nil {
		var re *ResolutionError
		if errors.As(err, &re) {
			return LocalMedia{}, err
		}
		return LocalMedia{}, &ResolutionError{Kind: TransferFailure, Source: source.String(), Err: err}
	}
	return media, nil
}

func (r *Resolver) resolveStream(ctx context.Context, job JobDescriptor, source SegmentedStream, dir string, log *zap.SugaredLogger) (LocalMedia, error) {
	manifestURL, err := r.layout.ManifestURL(job, source)
	if err != nil {
		return LocalMedia{}, &ResolutionError{Kind: UnsupportedSource, Source: source.String(), Err: err}
	}
	log.Debugf("Downloading stream %s", manifestURL)
	manifest, err := r.streams.Download(ctx, manifestURL, dir)
	if err != nil {
		var re *ResolutionError
		if errors.Is(err, ErrNoContent) || errors.As(err, &re) {
			return LocalMedia{}, err
		}
		return LocalMedia{}, &ResolutionError{Kind: TransferFailure, Source: manifestURL, Err: err}
	}
	return LocalMedia{Path: manifest}, nil
}
