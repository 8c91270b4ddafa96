package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldcast/filmstrip-migration"
	"github.com/goldcast/filmstrip-migration/platform/youtube"
	"github.com/goldcast/filmstrip-migration/platform/ytdlp"
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(Options{})
	require.NoError(t, err)
	assert.Equal(t, []filmstrip.PlatformTag{
		filmstrip.PlatformHostedURL,
		filmstrip.PlatformVimeo,
		filmstrip.PlatformWistia,
		filmstrip.PlatformYouTube,
		filmstrip.PlatformZoom,
	}, r.List())

	_, err = r.Lookup(filmstrip.PlatformOther)
	assert.ErrorIs(t, err, filmstrip.ErrUnknownPlatform)

	d, err := r.Lookup(filmstrip.PlatformYouTube)
	require.NoError(t, err)
	assert.IsType(t, &ytdlp.Strategy{}, d)
}

func TestNewRegistryNativeYouTube(t *testing.T) {
	r, err := NewRegistry(Options{YouTubeNative: true, Executable: "/opt/bin/yt-dlp"})
	require.NoError(t, err)
	d, err := r.Lookup(filmstrip.PlatformYouTube)
	require.NoError(t, err)
	assert.IsType(t, &youtube.Downloader{}, d)

	d, err = r.Lookup(filmstrip.PlatformVimeo)
	require.NoError(t, err)
	assert.Equal(t, "/opt/bin/yt-dlp", d.(*ytdlp.Strategy).Request("u", "d").Executable)
}
