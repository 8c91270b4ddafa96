// Package jobsource lists the content items a batch should process.
package jobsource

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goldcast/filmstrip-migration"
)

// MediaContent is a row of media_content: one broadcast recording of an event.
type MediaContent struct {
	ID          string `gorm:"column:id;primaryKey"`
	ProjectID   string `gorm:"column:project_id"`
	EndTime     time.Time
	BatchStatus string
	Type        string
	MediaType   string
}

func (MediaContent) TableName() string {
	return "media_content"
}

// ContentUpload is a row of content_upload: a video uploaded to, or imported into, a project.
type ContentUpload struct {
	ID               string `gorm:"column:id;primaryKey"`
	ProjectID        string `gorm:"column:project_id"`
	CreatedAt        time.Time
	Deleted          *time.Time
	AVType           string  `gorm:"column:av_type"`
	ImportSourceType *string `gorm:"column:import_source_type"`
	ImportURL        *string `gorm:"column:import_url"`
	IsSampleUpload   bool
}

func (ContentUpload) TableName() string {
	return "content_upload"
}

// Source builds job descriptors from the content database. Every query looks back a number of days from now.
type Source struct {
	db     *gorm.DB
	stream filmstrip.SegmentedStream
	now    func() time.Time
	log    *zap.SugaredLogger
}

type Option func(*Source)

// WithClock replaces time.Now as the end of the lookback window.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		s.now = now
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Source) {
		if log != nil {
			s.log = log
		}
	}
}

// New returns a Source over db. Recordings are resolved from stream.
func New(db *gorm.DB, stream filmstrip.SegmentedStream, opts ...Option) *Source {
	s := &Source{
		db:     db,
		stream: stream,
		now:    time.Now,
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("jobsource")
	return s
}

func (s *Source) since(days int) time.Time {
	return s.now().UTC().AddDate(0, 0, -days)
}

// Recordings returns finished video recordings that ended in the last days days.
func (s *Source) Recordings(ctx context.Context, days int) ([]filmstrip.JobDescriptor, error) {
	var rows []MediaContent
	err := s.db.WithContext(ctx).
		Where("end_time >= ?", s.since(days)).
		Where("batch_status = ? AND type = ? AND media_type = ?", "DONE", "RECORDING", string(filmstrip.MediaTypeVideo)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	jobs := make([]filmstrip.JobDescriptor, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, filmstrip.JobDescriptor{
			EntityID:  row.ProjectID,
			ContentID: row.ID,
			MediaType: filmstrip.MediaTypeVideo,
			Source:    s.stream,
		})
	}
	s.log.Infof("Found %d recordings from the last %d days", len(jobs), days)
	return jobs, nil
}

// Uploads returns video uploads created in the last days days. Plain uploads are read from the store; imported
// videos are fetched from their import URL.
func (s *Source) Uploads(ctx context.Context, days int) ([]filmstrip.JobDescriptor, error) {
	rows, err := s.uploads(days, s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	jobs := make([]filmstrip.JobDescriptor, 0, len(rows))
	for _, row := range rows {
		source, ok := uploadSource(row)
		if !ok {
			s.log.Warnw("Skipping upload with incomplete import", "entity_id", row.ProjectID, "content_id", row.ID)
			continue
		}
		jobs = append(jobs, filmstrip.JobDescriptor{
			EntityID:  row.ProjectID,
			ContentID: row.ID,
			MediaType: filmstrip.MediaTypeVideo,
			Source:    source,
		})
	}
	s.log.Infof("Found %d uploads from the last %d days", len(jobs), days)
	return jobs, nil
}

// Preseeded returns sample uploads created in the last days days. They get the pre-seeded filmstrip instead of a
// generated one.
func (s *Source) Preseeded(ctx context.Context, days int) ([]filmstrip.JobDescriptor, error) {
	rows, err := s.uploads(days, s.db.WithContext(ctx).Where("is_sample_upload = ?", true))
	if err != nil {
		return nil, err
	}
	jobs := make([]filmstrip.JobDescriptor, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, filmstrip.JobDescriptor{
			EntityID:  row.ProjectID,
			ContentID: row.ID,
			MediaType: filmstrip.MediaTypeVideo,
			Source:    filmstrip.StoreRef{},
		})
	}
	s.log.Infof("Found %d sample uploads from the last %d days", len(jobs), days)
	return jobs, nil
}

func (s *Source) uploads(days int, tx *gorm.DB) ([]ContentUpload, error) {
	var rows []ContentUpload
	err := tx.
		Where("created_at >= ?", s.since(days)).
		Where("deleted IS NULL AND av_type = ?", string(filmstrip.MediaTypeVideo)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	return rows, nil
}

func uploadSource(row ContentUpload) (filmstrip.SourceDescriptor, bool) {
	switch {
	case row.ImportURL == nil && row.ImportSourceType == nil:
		return filmstrip.StoreRef{}, true
	case row.ImportURL != nil && row.ImportSourceType != nil && *row.ImportURL != "":
		return filmstrip.URLImport{URL: *row.ImportURL, Platform: filmstrip.PlatformTag(*row.ImportSourceType)}, true
	default:
		return nil, false
	}
}
