package objectstore

import (
	"context"
	"errors"
	"io"
)

// DryRun reads through to Base but keeps every write in memory, so nothing in Base is ever modified. Objects written
// during the dry run shadow those in Base.
type DryRun struct {
	Base   Store
	Writes *Memory
}

func NewDryRun(base Store) *DryRun {
	return &DryRun{Base: base, Writes: NewMemory()}
}

func (d *DryRun) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	return d.Writes.Put(ctx, bucket, key, body, size, contentType)
}

func (d *DryRun) Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	body, info, err := d.Writes.Get(ctx, bucket, key)
	if errors.Is(err, ErrNotFound) {
		return d.Base.Get(ctx, bucket, key)
	}
	return body, info, err
}

func (d *DryRun) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := d.Writes.Stat(ctx, bucket, key)
	if errors.Is(err, ErrNotFound) {
		return d.Base.Stat(ctx, bucket, key)
	}
	return info, err
}

// Copy reads the source through the overlay and writes the copy to memory.
func (d *DryRun) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	if _, err := d.Writes.Stat(ctx, bucket, srcKey); err == nil {
		return d.Writes.Copy(ctx, bucket, srcKey, dstKey)
	}
	body, info, err := d.Base.Get(ctx, bucket, srcKey)
	if err != nil {
		return err
	}
	defer body.Close()
	return d.Writes.Put(ctx, bucket, dstKey, body, info.Size, info.ContentType)
}

// Delete only removes objects written during the dry run.
func (d *DryRun) Delete(ctx context.Context, bucket, key string) error {
	return d.Writes.Delete(ctx, bucket, key)
}
