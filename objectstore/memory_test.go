package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify that intended interfaces are implemented
var _ Store = &Memory{}
var _ Store = &MinioStore{}
var _ Store = &DryRun{}

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, _, err := m.Get(ctx, "b", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, m.Put(ctx, "b", "a/b.json", strings.NewReader("{}"), 2, "application/json"))
	r, info, err := m.Get(ctx, "b", "a/b.json")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.Equal(t, int64(2), info.Size)
	assert.Equal(t, "application/json", info.ContentType)

	// Buckets are separate key spaces
	_, err = m.Stat(ctx, "other", "a/b.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryPutSizeMismatch(t *testing.T) {
	m := NewMemory()
	err := m.Put(context.Background(), "b", "k", strings.NewReader("abc"), 5, "")
	assert.Error(t, err)
	assert.Empty(t, m.Keys("b"))
}

func TestMemoryCopyAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "b", "src", strings.NewReader("x"), 1, ""))
	require.NoError(t, m.Copy(ctx, "b", "src", "dst"))
	assert.Equal(t, []string{"dst", "src"}, m.Keys("b"))

	assert.True(t, errors.Is(m.Copy(ctx, "b", "nope", "dst2"), ErrNotFound))

	require.NoError(t, m.Delete(ctx, "b", "src"))
	assert.Equal(t, []string{"dst"}, m.Keys("b"))
}

func TestMemoryBeforePut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")
	m.BeforePut = func(bucket, key string) error {
		if key == "bad" {
			return boom
		}
		return nil
	}
	assert.NoError(t, m.Put(ctx, "b", "good", strings.NewReader(""), 0, ""))
	assert.ErrorIs(t, m.Put(ctx, "b", "bad", strings.NewReader(""), 0, ""), boom)
	assert.ErrorIs(t, m.Copy(ctx, "b", "good", "bad"), boom)
	assert.Equal(t, []string{"good"}, m.Keys("b"))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig.Validate())

	cfg := DefaultConfig
	cfg.Endpoint = "https://s3.amazonaws.com"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig
	cfg.AccessKey = "a"
	assert.Error(t, cfg.Validate())
	cfg.SecretKey = "b"
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig
	cfg.Region = " "
	assert.Error(t, cfg.Validate())
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	require.NoError(t, base.Put(ctx, "b", "existing", strings.NewReader("base"), 4, "text/plain"))
	d := NewDryRun(base)

	body, _, err := d.Get(ctx, "b", "existing")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "base", string(data))

	require.NoError(t, d.Put(ctx, "b", "new", strings.NewReader("dry"), 3, "text/plain"))
	require.NoError(t, d.Copy(ctx, "b", "existing", "copied"))
	assert.Equal(t, []string{"existing"}, base.Keys("b"))
	assert.Equal(t, []string{"copied", "new"}, d.Writes.Keys("b"))

	info, err := d.Stat(ctx, "b", "copied")
	require.NoError(t, err)
	assert.EqualValues(t, 4, info.Size)

	_, err = d.Stat(ctx, "b", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, d.Copy(ctx, "b", "missing", "x"), ErrNotFound)
}
