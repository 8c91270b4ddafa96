// Package youtube downloads YouTube videos natively, without the yt-dlp binary.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/goldcast/filmstrip-migration"
	"github.com/goldcast/filmstrip-migration/download"
)

const (
	MaxHeight       = 1080
	DefaultFilename = "input.mp4"
)

var ErrNoFormat = errors.New("no suitable format")

// Downloader fetches the best muxed avc1/mp4 format of at most MaxHeight.
type Downloader struct {
	client   *youtube.Client
	filename string
	log      *zap.SugaredLogger
}

func New(client *youtube.Client, log *zap.SugaredLogger) *Downloader {
	if client == nil {
		client = &youtube.Client{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Downloader{client: client, filename: DefaultFilename, log: log.Named("youtube")}
}

// Platform returns d as the YOUTUBE registry entry.
func (d *Downloader) Platform() filmstrip.Platform {
	return filmstrip.Platform{Tag: filmstrip.PlatformYouTube, Downloader: d}
}

func (d *Downloader) Download(ctx context.Context, ref filmstrip.URLImport, dir string) (filmstrip.LocalMedia, error) {
	videoID, err := videoIDFromString(ref.URL)
	if err != nil {
		return filmstrip.LocalMedia{}, &filmstrip.ResolutionError{Kind: filmstrip.UnsupportedSource, Source: ref.URL, Err: err}
	}

	video, err := d.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return filmstrip.LocalMedia{}, fmt.Errorf("failed to get video info: %w", err)
	}
	format, err := SelectFormat(video.Formats)
	if err != nil {
		return filmstrip.LocalMedia{}, fmt.Errorf("%s: %w", videoID, err)
	}
	d.log.Debugw("Selected format", "video_id", videoID, "itag", format.ItagNo, "quality", format.QualityLabel)

	stream, _, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return filmstrip.LocalMedia{}, fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	target := filepath.Join(dir, d.filename)
	if _, err := download.SaveStream(ctx, target, stream); err != nil {
		return filmstrip.LocalMedia{}, err
	}
	return filmstrip.LocalMedia{Path: target}, nil
}

// SelectFormat picks the tallest, then highest bitrate, format that has audio, is mp4 with an avc1 video codec,
// and is no taller than MaxHeight.
func SelectFormat(formats youtube.FormatList) (*youtube.Format, error) {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.Height == 0 || f.Height > MaxHeight {
			continue
		}
		if !strings.HasPrefix(f.MimeType, "video/mp4") || !strings.Contains(f.MimeType, "avc1") {
			continue
		}
		if best == nil || f.Height > best.Height || (f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = f
		}
	}
	if best == nil {
		return nil, ErrNoFormat
	}
	return best, nil
}

// ExtractVideoID extracts the video ID from a YouTube URL.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/(watch|details)?v={VIDEO_ID}
//	http(s?)://(www|m).youtube.com/(v|embed|shorts)/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
func ExtractVideoID(u *url.URL) (string, error) {
	var id string
	switch u.Hostname() {
	case "youtube.com", "www.youtube.com", "m.youtube.com":
		if prefix, ok := pathPrefix(u.Path, "/v/", "/embed/", "/shorts/"); ok {
			id = strings.SplitN(strings.TrimPrefix(u.Path, prefix), "/", 2)[0]
		} else if u.Path == "/watch" || u.Path == "/details" {
			if !u.Query().Has("v") {
				return "", fmt.Errorf("missing ?v= query parameter")
			}
			id = u.Query().Get("v")
		}
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	default:
		return "", fmt.Errorf("unrecognised hostname %q", u.Hostname())
	}
	if id == "" {
		return "", fmt.Errorf("could not extract video ID")
	}
	return id, nil
}

func videoIDFromString(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return ExtractVideoID(u)
}

func pathPrefix(p string, prefixes ...string) (string, bool) {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return prefix, true
		}
	}
	return "", false
}
