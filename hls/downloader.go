package hls

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goldcast/filmstrip-migration"
	"github.com/goldcast/filmstrip-migration/download"
)

const DefaultWorkers = 8

// Downloader fetches a manifest and all of its segments. It holds no per-download state, so one Downloader can serve
// many jobs concurrently.
type Downloader struct {
	client  *http.Client
	workers int
	log     *zap.SugaredLogger
}

type Option func(*Downloader)

func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		d.client = client
	}
}

// WithWorkers bounds how many segments are fetched at once.
func WithWorkers(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(d *Downloader) {
		if log != nil {
			d.log = log
		}
	}
}

func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:  http.DefaultClient,
		workers: DefaultWorkers,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.Named("hls")
	return d
}

// Download fetches the manifest at manifestURL, downloads every segment into dir under its basename, and writes the
// rewritten manifest into dir. It returns the local manifest path, or filmstrip.ErrNoContent if the manifest has no
// segments. Any failed request fails the whole download; nothing is retried.
func (d *Downloader) Download(ctx context.Context, manifestURL string, dir string) (string, error) {
	log := d.log.With("manifest", manifestURL)

	base, err := url.Parse(manifestURL)
	if err != nil {
		return "", d.transferError(manifestURL, fmt.Errorf("parse manifest URL: %w", err))
	}
	manifestName, err := download.FilenameFromURL(base)
	if err != nil {
		return "", d.transferError(manifestURL, err)
	}

	raw, err := download.Get(ctx, d.client, manifestURL)
	if err != nil {
		return "", d.transferError(manifestURL, err)
	}

	lines := SplitLines(raw)
	segments, err := ParseSegments(lines, base)
	if err != nil {
		return "", d.transferError(manifestURL, err)
	}
	if len(segments) == 0 {
		log.Infof("Manifest has no segments")
		return "", fmt.Errorf("%s: %w", manifestURL, filmstrip.ErrNoContent)
	}
	unique, err := uniqueSegments(segments)
	if err != nil {
		return "", d.transferError(manifestURL, err)
	}

	log.Debugf("Fetching %d segments", len(unique))
	if err := d.fetchAll(ctx, unique, dir); err != nil {
		return "", d.transferError(manifestURL, err)
	}

	local := filepath.Join(dir, manifestName)
	if err := os.WriteFile(local, JoinLines(Rewrite(lines, segments)), 0o644); err != nil {
		return "", d.transferError(manifestURL, fmt.Errorf("write local manifest: %w", err))
	}
	log.Debugf("Wrote local manifest %s", local)
	return local, nil
}

func (d *Downloader) fetchAll(ctx context.Context, segments []Segment, dir string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, s := range segments {
		s := s
		g.Go(func() error {
			if _, err := download.SaveURL(ctx, d.client, s.URL, filepath.Join(dir, s.Name)); err != nil {
				return fmt.Errorf("segment %s: %w", s.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (d *Downloader) transferError(manifestURL string, err error) error {
	return &filmstrip.ResolutionError{Kind: filmstrip.TransferFailure, Source: manifestURL, Err: err}
}

// uniqueSegments drops repeated references to the same URL. Two different URLs with the same basename would overwrite
// each other on disk, so that is an error.
func uniqueSegments(segments []Segment) ([]Segment, error) {
	byName := make(map[string]string, len(segments))
	unique := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if existing, ok := byName[s.Name]; ok {
			if existing != s.URL {
				return nil, fmt.Errorf("segments %s and %s share local name %s", existing, s.URL, s.Name)
			}
			continue
		}
		byName[s.Name] = s.URL
		unique = append(unique, s)
	}
	return unique, nil
}
