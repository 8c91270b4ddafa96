// Package store publishes filmstrips to the artifact store. The index object is written last and a non-empty index
// is what marks a job as done, so readers never see an index that points at missing artifacts.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goldcast/filmstrip-migration"
	"github.com/goldcast/filmstrip-migration/download"
	"github.com/goldcast/filmstrip-migration/objectstore"
)

const (
	DefaultUploadWorkers = 5
	IndexContentType     = "application/json"
)

var ErrEmptyArtifactSet = errors.New("no artifacts to publish")

// Store is the artifact store for one bucket. It is safe for concurrent use by many jobs.
type Store struct {
	objects       objectstore.Store
	bucket        string
	workers       int
	copyArtifacts bool
	log           *zap.SugaredLogger
}

type Option func(*Store)

// WithUploadWorkers bounds how many objects one Publish or Preseed call writes at once.
func WithUploadWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithArtifactCopy makes Preseed copy the template's artifacts into the job's key space, instead of publishing an
// index that points at the template's artifacts.
func WithArtifactCopy(enabled bool) Option {
	return func(s *Store) {
		s.copyArtifacts = enabled
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func New(objects objectstore.Store, bucket string, opts ...Option) *Store {
	s := &Store{
		objects: objects,
		bucket:  bucket,
		workers: DefaultUploadWorkers,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("store").With("bucket", bucket)
	return s
}

// ReadIndex reads and decodes the index at key. A missing object is returned as objectstore.ErrNotFound inside a
// *filmstrip.StoreReadError.
func (s *Store) ReadIndex(ctx context.Context, key string) (filmstrip.ArtifactIndex, error) {
	body, _, err := s.objects.Get(ctx, s.bucket, key)
	if err != nil {
		return filmstrip.ArtifactIndex{}, &filmstrip.StoreReadError{Key: key, Err: err}
	}
	defer body.Close()
	var index filmstrip.ArtifactIndex
	if err := json.NewDecoder(body).Decode(&index); err != nil {
		return filmstrip.ArtifactIndex{}, &filmstrip.StoreReadError{Key: key, Err: fmt.Errorf("decode index: %w", err)}
	}
	return index, nil
}

// IsComplete reports whether the index at indexKey lists at least one artifact. A missing or unreadable index is not
// complete; any other read failure is returned.
func (s *Store) IsComplete(ctx context.Context, indexKey string) (bool, error) {
	index, err := s.ReadIndex(ctx, indexKey)
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return index.IsComplete(), nil
	case errors.Is(err, objectstore.ErrNotFound):
		return false, nil
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		s.log.Warnw("Ignoring malformed index", "key", indexKey, "error", err)
		return false, nil
	default:
		return false, err
	}
}

// Fetch downloads the object at key to the local file path.
func (s *Store) Fetch(ctx context.Context, key string, path string) error {
	body, info, err := s.objects.Get(ctx, s.bucket, key)
	if err != nil {
		return &filmstrip.StoreReadError{Key: key, Err: err}
	}
	defer body.Close()
	n, err := download.SaveStream(ctx, path, body)
	if err != nil {
		return &filmstrip.StoreReadError{Key: key, Err: err}
	}
	s.log.Debugw("Fetched object", "key", key, "path", path, "bytes", n, "etag", info.ETag)
	return nil
}

// Publish uploads every artifact next to indexKey, then writes the index. If any upload fails the index is not
// written and the error is a *filmstrip.UploadError.
func (s *Store) Publish(ctx context.Context, set filmstrip.ArtifactSet, indexKey string) (filmstrip.ArtifactIndex, error) {
	if len(set) == 0 {
		return filmstrip.ArtifactIndex{}, &filmstrip.UploadError{Key: indexKey, Err: ErrEmptyArtifactSet}
	}
	prefix := path.Dir(indexKey)
	sorted := set.Sorted()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, artifact := range sorted {
		artifact := artifact
		key := path.Join(prefix, artifact.Filename)
		g.Go(func() error {
			return s.uploadFile(gctx, artifact.Path, key)
		})
	}
	if err := g.Wait(); err != nil {
		return filmstrip.ArtifactIndex{}, err
	}

	index := filmstrip.ArtifactIndex{ArtifactKeys: sorted.Keys(prefix)}
	data, err := EncodeIndex(index)
	if err != nil {
		return filmstrip.ArtifactIndex{}, &filmstrip.UploadError{Key: indexKey, Err: err}
	}
	// Keep a local copy next to the artifacts, removed with the working directory.
	localIndex := filepath.Join(filepath.Dir(sorted[0].Path), path.Base(indexKey))
	if err := os.WriteFile(localIndex, data, 0o644); err != nil {
		return filmstrip.ArtifactIndex{}, &filmstrip.UploadError{Key: indexKey, Err: err}
	}
	if err := s.put(ctx, indexKey, data, IndexContentType); err != nil {
		return filmstrip.ArtifactIndex{}, err
	}
	s.log.Infow("Published filmstrip", "index", indexKey, "artifacts", len(index.ArtifactKeys))
	return index, nil
}

// Preseed publishes the template index at templateKey as the index at indexKey. The template must be complete.
func (s *Store) Preseed(ctx context.Context, templateKey string, indexKey string) (filmstrip.ArtifactIndex, error) {
	template, err := s.ReadIndex(ctx, templateKey)
	if err != nil {
		return filmstrip.ArtifactIndex{}, err
	}
	if !template.IsComplete() {
		return filmstrip.ArtifactIndex{}, &filmstrip.StoreReadError{Key: templateKey, Err: errors.New("template index lists no artifacts")}
	}

	index := template
	if s.copyArtifacts {
		if index, err = s.copyTemplate(ctx, template, path.Dir(indexKey)); err != nil {
			return filmstrip.ArtifactIndex{}, err
		}
	}
	data, err := EncodeIndex(index)
	if err != nil {
		return filmstrip.ArtifactIndex{}, &filmstrip.UploadError{Key: indexKey, Err: err}
	}
	if err := s.put(ctx, indexKey, data, IndexContentType); err != nil {
		return filmstrip.ArtifactIndex{}, err
	}
	s.log.Infow("Preseeded filmstrip", "template", templateKey, "index", indexKey, "copied", s.copyArtifacts)
	return index, nil
}

func (s *Store) copyTemplate(ctx context.Context, template filmstrip.ArtifactIndex, prefix string) (filmstrip.ArtifactIndex, error) {
	keys := make([]string, len(template.ArtifactKeys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, src := range template.ArtifactKeys {
		i, src := i, src
		dst := path.Join(prefix, path.Base(src))
		g.Go(func() error {
			if err := s.objects.Copy(gctx, s.bucket, src, dst); err != nil {
				return &filmstrip.UploadError{Key: dst, Err: err}
			}
			keys[i] = dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return filmstrip.ArtifactIndex{}, err
	}
	return filmstrip.ArtifactIndex{ArtifactKeys: keys}, nil
}

func (s *Store) uploadFile(ctx context.Context, filename string, key string) error {
	f, err := os.Open(filename)
	if err != nil {
		return &filmstrip.UploadError{Key: key, Err: err}
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return &filmstrip.UploadError{Key: key, Err: err}
	}
	if err := s.objects.Put(ctx, s.bucket, key, f, info.Size(), contentType(key)); err != nil {
		return &filmstrip.UploadError{Key: key, Err: err}
	}
	s.log.Debugw("Uploaded artifact", "key", key, "bytes", info.Size())
	return nil
}

func (s *Store) put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.objects.Put(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return &filmstrip.UploadError{Key: key, Err: err}
	}
	return nil
}

// EncodeIndex renders index as JSON indented by four spaces.
func EncodeIndex(index filmstrip.ArtifactIndex) ([]byte, error) {
	if index.ArtifactKeys == nil {
		index.ArtifactKeys = []string{}
	}
	return json.MarshalIndent(index, "", "    ")
}

func contentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
