package filmstrip

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
)

// EnsureWorkdir creates dir and any missing parents. It is safe to call repeatedly.
func EnsureWorkdir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	return nil
}

var removeAll = os.RemoveAll

// CleanupError is a failure to remove a working directory after the work in it finished.
type CleanupError struct {
	Dir string
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("clean up working directory %s: %v", e.Dir, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// WithWorkdir creates dir empty, runs f with it, and then removes dir and everything in it, whether f succeeded,
// failed or panicked. Anything left in dir by an earlier run that never cleaned up is removed first. A cleanup failure
// is reported as a *CleanupError alongside any error from f.
func WithWorkdir(dir string, f func(dir string) error) (err error) {
	if err := removeAll(dir); err != nil {
		return fmt.Errorf("clear stale working directory: %w", err)
	}
	if err := EnsureWorkdir(dir); err != nil {
		return err
	}
	defer func() {
		if rmErr := removeAll(dir); rmErr != nil {
			rmErr = &CleanupError{Dir: dir, Err: rmErr}
			if err == nil {
				err = rmErr
			} else {
				err = multierror.Append(err, rmErr)
			}
		}
	}()
	return f(dir)
}
