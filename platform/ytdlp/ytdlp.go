// Package ytdlp implements URL import strategies on top of the yt-dlp extractor. Each strategy only differs in the
// format constraints it passes to yt-dlp.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"

	"github.com/goldcast/filmstrip-migration"
)

// Format selectors, capped at 1080p and pinned to codecs ffmpeg can tile without surprises.
const (
	YouTubeFormat = "bestvideo[height<=1080][vcodec^=avc]+bestaudio[acodec^=mp4a]/best[height<=1080][vcodec^=avc]"
	VimeoFormat   = "bestvideo[height<=1080][vcodec^=avc1]+bestaudio[acodec^=mp4a]/best[height<=1080][vcodec^=avc1]"
	WistiaFormat  = "bestvideo[vcodec^=h264][height<=1080]+bestaudio/best"
)

const DefaultFilename = "input.mp4"

// A Request is one yt-dlp invocation.
type Request struct {
	URL    string
	Output string
	// Format is a yt-dlp format selector; empty lets yt-dlp choose.
	Format string
	// GenericExtractor skips yt-dlp's site-specific extractors.
	GenericExtractor bool
	// Executable overrides the yt-dlp binary; empty means yt-dlp on PATH.
	Executable string
}

// Command builds the yt-dlp command for r.
func (r Request) Command() *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		ForceOverwrites().
		MergeOutputFormat("mp4").
		Output(r.Output)
	if r.Format != "" {
		cmd = cmd.Format(r.Format)
	}
	if r.GenericExtractor {
		cmd = cmd.ForceGenericExtractor()
	}
	if r.Executable != "" {
		cmd = cmd.SetExecutable(r.Executable)
	}
	return cmd
}

// A Runner executes a Request.
type Runner func(ctx context.Context, req Request) error

// Exec runs the request with the yt-dlp binary.
func Exec(ctx context.Context, req Request) error {
	if _, err := req.Command().Run(ctx, req.URL); err != nil {
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return nil
}

// Strategy is a filmstrip.PlatformDownloader backed by yt-dlp.
type Strategy struct {
	tag              filmstrip.PlatformTag
	format           string
	genericExtractor bool
	filename         string
	executable       string
	run              Runner
	log              *zap.SugaredLogger
}

type Option func(*Strategy)

// WithRunner replaces the yt-dlp invocation, mostly for tests.
func WithRunner(run Runner) Option {
	return func(s *Strategy) {
		s.run = run
	}
}

func WithExecutable(path string) Option {
	return func(s *Strategy) {
		s.executable = path
	}
}

// WithFilename sets the name of the downloaded file inside the job directory.
func WithFilename(name string) Option {
	return func(s *Strategy) {
		s.filename = name
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Strategy) {
		if log != nil {
			s.log = log
		}
	}
}

func newStrategy(tag filmstrip.PlatformTag, format string, genericExtractor bool, opts []Option) *Strategy {
	s := &Strategy{
		tag:              tag,
		format:           format,
		genericExtractor: genericExtractor,
		filename:         DefaultFilename,
		run:              Exec,
		log:              zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("ytdlp").With("platform", string(tag))
	return s
}

func YouTube(opts ...Option) *Strategy {
	return newStrategy(filmstrip.PlatformYouTube, YouTubeFormat, false, opts)
}

// Vimeo forces the generic extractor; the site extractor fails on private embed links.
func Vimeo(opts ...Option) *Strategy {
	return newStrategy(filmstrip.PlatformVimeo, VimeoFormat, true, opts)
}

func Wistia(opts ...Option) *Strategy {
	return newStrategy(filmstrip.PlatformWistia, WistiaFormat, false, opts)
}

// Zoom only works for recordings that are not password protected.
func Zoom(opts ...Option) *Strategy {
	return newStrategy(filmstrip.PlatformZoom, "", false, opts)
}

// HostedURL is the unconstrained strategy for media served from any URL.
func HostedURL(opts ...Option) *Strategy {
	return newStrategy(filmstrip.PlatformHostedURL, "", false, opts)
}

func (s *Strategy) Tag() filmstrip.PlatformTag {
	return s.tag
}

// Platform returns s as a registry entry.
func (s *Strategy) Platform() filmstrip.Platform {
	return filmstrip.Platform{Tag: s.tag, Downloader: s}
}

func (s *Strategy) Request(url string, dir string) Request {
	return Request{
		URL:              url,
		Output:           filepath.Join(dir, s.filename),
		Format:           s.format,
		GenericExtractor: s.genericExtractor,
		Executable:       s.executable,
	}
}

func (s *Strategy) Download(ctx context.Context, ref filmstrip.URLImport, dir string) (filmstrip.LocalMedia, error) {
	req := s.Request(ref.URL, dir)
	s.log.Debugw("Running yt-dlp", "url", req.URL, "format", req.Format, "output", req.Output)
	if err := s.run(ctx, req); err != nil {
		return filmstrip.LocalMedia{}, err
	}
	if _, err := os.Stat(req.Output); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return filmstrip.LocalMedia{}, fmt.Errorf("yt-dlp finished without writing %s", req.Output)
		}
		return filmstrip.LocalMedia{}, err
	}
	return filmstrip.LocalMedia{Path: req.Output}, nil
}
