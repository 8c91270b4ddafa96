package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldcast/filmstrip-migration"
)

// Verify that intended interfaces are implemented
var _ filmstrip.PlatformDownloader = &Strategy{}

func TestStrategies(t *testing.T) {
	cases := []struct {
		strategy *Strategy
		tag      filmstrip.PlatformTag
		format   string
		generic  bool
	}{
		{YouTube(), filmstrip.PlatformYouTube, YouTubeFormat, false},
		{Vimeo(), filmstrip.PlatformVimeo, VimeoFormat, true},
		{Wistia(), filmstrip.PlatformWistia, WistiaFormat, false},
		{Zoom(), filmstrip.PlatformZoom, "", false},
		{HostedURL(), filmstrip.PlatformHostedURL, "", false},
	}
	for _, c := range cases {
		t.Run(string(c.tag), func(t *testing.T) {
			assert.Equal(t, c.tag, c.strategy.Tag())
			assert.Equal(t, c.tag, c.strategy.Platform().Tag)
			req := c.strategy.Request("https://example.com/v", "/work/e/c")
			assert.Equal(t, Request{
				URL:              "https://example.com/v",
				Output:           filepath.Join("/work/e/c", DefaultFilename),
				Format:           c.format,
				GenericExtractor: c.generic,
			}, req)
			assert.NotNil(t, req.Command())
		})
	}
}

func TestDownload(t *testing.T) {
	dir := t.TempDir()
	var got Request
	s := HostedURL(WithFilename("video.mp4"), WithRunner(func(ctx context.Context, req Request) error {
		got = req
		return os.WriteFile(req.Output, []byte("media"), 0o644)
	}))

	media, err := s.Download(context.Background(), filmstrip.URLImport{URL: "https://cdn.example/v.mp4", Platform: filmstrip.PlatformHostedURL}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "video.mp4"), media.Path)
	assert.Equal(t, "https://cdn.example/v.mp4", got.URL)
}

func TestDownloadFailure(t *testing.T) {
	dir := t.TempDir()
	failure := errors.New("ERROR: Unsupported URL")
	s := Zoom(WithRunner(func(ctx context.Context, req Request) error {
		return failure
	}))
	_, err := s.Download(context.Background(), filmstrip.URLImport{URL: "https://zoom.us/rec/x"}, dir)
	assert.ErrorIs(t, err, failure)

	s = Zoom(WithRunner(func(ctx context.Context, req Request) error {
		return nil
	}))
	_, err = s.Download(context.Background(), filmstrip.URLImport{URL: "https://zoom.us/rec/x"}, dir)
	assert.ErrorContains(t, err, "without writing")
}
