package filmstrip

import (
	"errors"
	"fmt"
)

var (
	// ErrNoContent means the source exists but holds nothing to process; it is not a job failure.
	ErrNoContent = errors.New("no content to process")

	ErrDuplicatePlatform = errors.New("duplicate platform tag")
	ErrInvalidPlatform   = errors.New("invalid platform")
	ErrUnknownPlatform   = errors.New("unknown platform")
)

type ResolutionKind int

const (
	NotFound ResolutionKind = iota + 1
	UnsupportedSource
	TransferFailure
)

func (k ResolutionKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case UnsupportedSource:
		return "unsupported source"
	case TransferFailure:
		return "transfer failure"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// ResolutionError is returned when a job's source cannot be turned into local media.
type ResolutionError struct {
	Kind   ResolutionKind
	Source string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("resolve %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsResolutionKind reports whether err wraps a *ResolutionError of the given kind.
func IsResolutionKind(err error, kind ResolutionKind) bool {
	var re *ResolutionError
	return errors.As(err, &re) && re.Kind == kind
}

// TranscodeError is returned when the external transcoder fails during filmstrip generation.
type TranscodeError struct {
	Stage string
	Err   error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode (%s): %v", e.Stage, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// UploadError is returned when an artifact or index cannot be written to the store.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// StoreReadError is returned when an object cannot be read from the store.
type StoreReadError struct {
	Key string
	Err error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Key, e.Err)
}

func (e *StoreReadError) Unwrap() error {
	return e.Err
}
