package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldcast/filmstrip-migration"
)

// Verify that intended interfaces are implemented
var (
	_ filmstrip.FilmstripGenerator = &Generator{}
	_ Runner                       = ExecRunner{}
)

// fakeRunner pretends to be ffmpeg: the tiling pass writes tiles tiles numbered from first (default 1), conversions
// write their output file.
type fakeRunner struct {
	mu          sync.Mutex
	tiles       int
	first       int
	calls       [][]string
	tileErr     error
	convertFail string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	output := args[len(args)-1]
	if slices.Contains(args, "-vf") {
		if r.tileErr != nil {
			return []byte("Invalid data found when processing input\n"), r.tileErr
		}
		first := max(r.first, 1)
		for i := first; i < first+r.tiles; i++ {
			if err := os.WriteFile(fmt.Sprintf(output, i), []byte("png"), 0o644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	if r.convertFail != "" && filepath.Base(output) == r.convertFail {
		return nil, errors.New("exit status 1")
	}
	return nil, os.WriteFile(output, []byte("webp"), 0o644)
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{tiles: 12}
	g := New(WithRunner(runner), WithBinary("/usr/bin/ffmpeg"))

	set, err := g.Generate(context.Background(), filmstrip.LocalMedia{Path: "input.mp4"}, dir)
	require.NoError(t, err)
	require.Len(t, set, 12)
	for i, a := range set {
		assert.Equal(t, i+1, a.Sequence)
		assert.Equal(t, fmt.Sprintf("filmstrip_%04d.webp", i+1), a.Filename)
		assert.FileExists(t, a.Path)
	}

	require.Len(t, runner.calls, 13)
	assert.Equal(t, []string{
		"/usr/bin/ffmpeg", "-y", "-hide_banner", "-loglevel", "error",
		"-i", "input.mp4", "-vf", "fps=2,scale=200:-1,tile=5x6", filepath.Join(dir, "filmstrip_%04d.png"),
	}, runner.calls[0])
	assert.Contains(t, runner.calls[1], "libwebp")
}

func TestGenerateCustomGrid(t *testing.T) {
	g := New(WithFrameRate(1), WithFrameWidth(320), WithGrid(4, 4))
	assert.Equal(t, "fps=1,scale=320:-1,tile=4x4", g.Filter())
}

func TestGenerateErrors(t *testing.T) {
	var te *filmstrip.TranscodeError

	g := New(WithRunner(&fakeRunner{tiles: 3, tileErr: errors.New("exit status 1")}))
	_, err := g.Generate(context.Background(), filmstrip.LocalMedia{Path: "input.mp4"}, t.TempDir())
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StageTile, te.Stage)
	assert.ErrorContains(t, err, "Invalid data found")

	g = New(WithRunner(&fakeRunner{tiles: 0}))
	_, err = g.Generate(context.Background(), filmstrip.LocalMedia{Path: "input.mp4"}, t.TempDir())
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrNoTiles)

	g = New(WithRunner(&fakeRunner{tiles: 3, convertFail: "filmstrip_0002.webp"}), WithWorkers(1))
	set, err := g.Generate(context.Background(), filmstrip.LocalMedia{Path: "input.mp4"}, t.TempDir())
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StageConvert, te.Stage)
	assert.Nil(t, set)
}

func TestGenerateTooManyTiles(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{tiles: MaxTiles + 1}
	g := New(WithRunner(runner))

	_, err := g.Generate(context.Background(), filmstrip.LocalMedia{Path: "input.mp4"}, dir)
	var transcodeErr *filmstrip.TranscodeError
	require.ErrorAs(t, err, &transcodeErr)
	assert.Equal(t, StageTile, transcodeErr.Stage)
	assert.ErrorIs(t, err, ErrTooManyTiles)
	assert.FileExists(t, filepath.Join(dir, "filmstrip_10000.png"))
	// The tiling pass is the only ffmpeg call; nothing is converted.
	assert.Len(t, runner.calls, 1)
}

func TestGenerateLastTileNumber(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{tiles: 1, first: MaxTiles}
	set, err := New(WithRunner(runner)).Generate(context.Background(), filmstrip.LocalMedia{Path: "input.mp4"}, dir)
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, "filmstrip_9999.webp", set[0].Filename)
}
