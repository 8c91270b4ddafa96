package async

import "context"

// Run will run a function in a goroutine, returning its result via a channel. The channel is buffered, so the
// goroutine finishes even if the result is never received.
func Run[T any](f func() T) <-chan T {
	c := make(chan T, 1)
	go func() {
		c <- f()
	}()
	return c
}

// Interruptible runs f and waits for its result. If ctx is done first, onInterrupt is called and f is still waited
// for; f is expected to observe the same ctx and return promptly.
func Interruptible(ctx context.Context, f func() error, onInterrupt func()) error {
	result := Run(f)
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if onInterrupt != nil {
			onInterrupt()
		}
		return <-result
	}
}
