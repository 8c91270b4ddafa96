// Package providers assembles the default platform registry.
package providers

import (
	"go.uber.org/zap"

	"github.com/goldcast/filmstrip-migration"
	"github.com/goldcast/filmstrip-migration/platform/youtube"
	"github.com/goldcast/filmstrip-migration/platform/ytdlp"
)

type Options struct {
	// YouTubeNative downloads YouTube videos with the built-in client instead of yt-dlp.
	YouTubeNative bool
	// Executable overrides the yt-dlp binary.
	Executable string
	Logger     *zap.SugaredLogger
}

// NewRegistry returns a registry with a strategy for every supported platform. PlatformOther has none.
func NewRegistry(opts Options) (*filmstrip.PlatformRegistry, error) {
	ytdlpOpts := []ytdlp.Option{ytdlp.WithLogger(opts.Logger)}
	if opts.Executable != "" {
		ytdlpOpts = append(ytdlpOpts, ytdlp.WithExecutable(opts.Executable))
	}

	youtubePlatform := ytdlp.YouTube(ytdlpOpts...).Platform()
	if opts.YouTubeNative {
		youtubePlatform = youtube.New(nil, opts.Logger).Platform()
	}

	return filmstrip.NewPlatformRegistry(
		youtubePlatform,
		ytdlp.Vimeo(ytdlpOpts...).Platform(),
		ytdlp.Wistia(ytdlpOpts...).Platform(),
		ytdlp.Zoom(ytdlpOpts...).Platform(),
		ytdlp.HostedURL(ytdlpOpts...).Platform(),
	)
}
