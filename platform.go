package filmstrip

import (
	"context"
	"fmt"
	"sort"
)

// A PlatformTag names a hosting platform that media can be imported from.
type PlatformTag string

const (
	PlatformYouTube   PlatformTag = "YOUTUBE"
	PlatformVimeo     PlatformTag = "VIMEO"
	PlatformWistia    PlatformTag = "WISTIA"
	PlatformZoom      PlatformTag = "ZOOM"
	PlatformHostedURL PlatformTag = "HOSTED_URL"
	// PlatformOther is a valid tag in job data, but has no download strategy.
	PlatformOther PlatformTag = "OTHER"
)

// A PlatformDownloader fetches media for a URLImport into dir, applying whatever format constraints its platform needs.
type PlatformDownloader interface {
	Download(ctx context.Context, ref URLImport, dir string) (LocalMedia, error)
}

// PlatformDownloaderFunc adapts a function to PlatformDownloader.
type PlatformDownloaderFunc func(ctx context.Context, ref URLImport, dir string) (LocalMedia, error)

func (f PlatformDownloaderFunc) Download(ctx context.Context, ref URLImport, dir string) (LocalMedia, error) {
	return f(ctx, ref, dir)
}

// A Platform pairs a tag with the strategy used to download from it.
type Platform struct {
	Tag        PlatformTag
	Downloader PlatformDownloader
}

// A PlatformRegistry is a fixed mapping from PlatformTag to PlatformDownloader. It is populated once by
// NewPlatformRegistry and never changes afterwards, so it is safe for concurrent use.
type PlatformRegistry struct {
	platforms map[PlatformTag]Platform
}

// NewPlatformRegistry builds a registry from the given platforms. Every Platform must have a Tag and a Downloader,
// and tags must be unique.
func NewPlatformRegistry(platforms ...Platform) (*PlatformRegistry, error) {
	r := &PlatformRegistry{platforms: make(map[PlatformTag]Platform, len(platforms))}
	for _, p := range platforms {
		if p.Tag == "" || p.Downloader == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPlatform, p.Tag)
		}
		if _, ok := r.platforms[p.Tag]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePlatform, p.Tag)
		}
		r.platforms[p.Tag] = p
	}
	return r, nil
}

// MustPlatformRegistry wraps NewPlatformRegistry but panics if there is an error.
func MustPlatformRegistry(platforms ...Platform) *PlatformRegistry {
	r, err := NewPlatformRegistry(platforms...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the downloader for tag, or ErrUnknownPlatform. There is no default: an unregistered tag is always
// an error.
func (r *PlatformRegistry) Lookup(tag PlatformTag) (PlatformDownloader, error) {
	if r != nil {
		if p, ok := r.platforms[tag]; ok {
			return p.Downloader, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, tag)
}

// List returns the registered tags in sorted order.
func (r *PlatformRegistry) List() []PlatformTag {
	if r == nil {
		return nil
	}
	tags := make([]PlatformTag, 0, len(r.platforms))
	for tag := range r.platforms {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		return tags[i] < tags[j]
	})
	return tags
}
