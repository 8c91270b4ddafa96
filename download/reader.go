package download

import (
	"context"
	"io"
)

// A context-aware io.Reader wrapper: once ctx is done, every Read fails with the context's error.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

// NewReader wraps r so that reads stop as soon as ctx is cancelled.
func NewReader(ctx context.Context, r io.Reader) io.Reader {
	return &readerContext{ctx: ctx, r: r}
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
