// Package ffmpeg generates filmstrips with the ffmpeg command line tool.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goldcast/filmstrip-migration"
)

const (
	DefaultBinary = "ffmpeg"

	// FilePrefix and the zero-padded sequence number make lexical order equal temporal order, up to MaxTiles.
	FilePrefix   = "filmstrip_"
	TileSuffix   = ".png"
	OutputSuffix = ".webp"
	// MaxTiles is the most tiles a four digit sequence can name. At the default 2 fps and 5x6 grid that is about
	// 41 hours of video.
	MaxTiles = 9999

	StageTile    = "tile"
	StageConvert = "convert"
)

var (
	ErrNoTiles      = errors.New("ffmpeg produced no tiles")
	ErrTooManyTiles = fmt.Errorf("ffmpeg produced more than %d tiles", MaxTiles)
)

// Generator samples frames from the input, tiles them into a grid, and converts every tile to WebP.
type Generator struct {
	binary  string
	fps     int
	width   int
	columns int
	rows    int
	workers int
	runner  Runner
	log     *zap.SugaredLogger
}

type Option func(*Generator)

func WithBinary(binary string) Option {
	return func(g *Generator) {
		if binary != "" {
			g.binary = binary
		}
	}
}

func WithRunner(runner Runner) Option {
	return func(g *Generator) {
		g.runner = runner
	}
}

// WithFrameRate sets how many frames are sampled per second of video.
func WithFrameRate(fps int) Option {
	return func(g *Generator) {
		g.fps = fps
	}
}

// WithFrameWidth sets the width of one frame in a tile; height keeps the aspect ratio.
func WithFrameWidth(width int) Option {
	return func(g *Generator) {
		g.width = width
	}
}

func WithGrid(columns, rows int) Option {
	return func(g *Generator) {
		g.columns = columns
		g.rows = rows
	}
}

// WithWorkers bounds how many tiles are converted at once.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{
		binary:  DefaultBinary,
		fps:     2,
		width:   200,
		columns: 5,
		rows:    6,
		workers: 4,
		runner:  ExecRunner{},
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.Named("ffmpeg")
	return g
}

// Filter is the video filter used for the tiling pass.
func (g *Generator) Filter() string {
	return fmt.Sprintf("fps=%d,scale=%d:-1,tile=%dx%d", g.fps, g.width, g.columns, g.rows)
}

// Generate writes the tiles and their WebP conversions into workdir and returns the WebP files in sequence order.
// Any ffmpeg failure is a *filmstrip.TranscodeError, and no artifacts are returned.
func (g *Generator) Generate(ctx context.Context, media filmstrip.LocalMedia, workdir string) (filmstrip.ArtifactSet, error) {
	pattern := filepath.Join(workdir, FilePrefix+"%04d"+TileSuffix)
	if err := g.run(ctx, StageTile, "-i", media.Path, "-vf", g.Filter(), pattern); err != nil {
		return nil, err
	}

	tiles, err := filepath.Glob(filepath.Join(workdir, FilePrefix+"*"+TileSuffix))
	if err != nil {
		return nil, &filmstrip.TranscodeError{Stage: StageTile, Err: err}
	}
	if len(tiles) == 0 {
		return nil, &filmstrip.TranscodeError{Stage: StageTile, Err: ErrNoTiles}
	}
	if len(tiles) > MaxTiles {
		return nil, &filmstrip.TranscodeError{Stage: StageTile, Err: ErrTooManyTiles}
	}
	sort.Strings(tiles)
	g.log.Debugw("Tiled input", "input", media.Path, "tiles", len(tiles))

	set := make(filmstrip.ArtifactSet, len(tiles))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, tile := range tiles {
		i, tile := i, tile
		eg.Go(func() error {
			artifact, err := g.convert(egCtx, tile)
			if err != nil {
				return err
			}
			set[i] = artifact
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return set.Sorted(), nil
}

func (g *Generator) convert(ctx context.Context, tile string) (filmstrip.Artifact, error) {
	base := strings.TrimSuffix(filepath.Base(tile), TileSuffix)
	sequence, err := strconv.Atoi(strings.TrimPrefix(base, FilePrefix))
	if err != nil {
		return filmstrip.Artifact{}, &filmstrip.TranscodeError{Stage: StageConvert, Err: fmt.Errorf("unexpected tile name %q", tile)}
	}
	output := filepath.Join(filepath.Dir(tile), base+OutputSuffix)
	if err := g.run(ctx, StageConvert, "-i", tile, "-c:v", "libwebp", output); err != nil {
		return filmstrip.Artifact{}, err
	}
	return filmstrip.Artifact{Filename: filepath.Base(output), Path: output, Sequence: sequence}, nil
}

func (g *Generator) run(ctx context.Context, stage string, args ...string) error {
	args = append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
	if output, err := g.runner.Run(ctx, g.binary, args...); err != nil {
		msg := strings.TrimSpace(string(output))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &filmstrip.TranscodeError{Stage: stage, Err: err}
	}
	return nil
}
