package filmstrip

import "fmt"

type SourceKind string

const (
	SourceKindStore           SourceKind = "store"
	SourceKindURLImport       SourceKind = "url_import"
	SourceKindSegmentedStream SourceKind = "segmented_stream"
)

// A SourceDescriptor says where the media for a job lives. It is a closed set of variants: StoreRef, URLImport and
// SegmentedStream; Resolver dispatches on the concrete type.
type SourceDescriptor interface {
	Kind() SourceKind
	String() string
	isSourceDescriptor()
}

// StoreRef is media already present in the artifact store. An empty Key means the key is derived from the job with
// Layout.SourceKey.
type StoreRef struct {
	Key string
}

func (StoreRef) Kind() SourceKind { return SourceKindStore }

func (s StoreRef) String() string {
	if s.Key == "" {
		return "store"
	}
	return fmt.Sprintf("store:%s", s.Key)
}

func (StoreRef) isSourceDescriptor() {}

// URLImport is media that must be pulled from an external URL, using the strategy registered for Platform.
type URLImport struct {
	URL      string
	Platform PlatformTag
}

func (URLImport) Kind() SourceKind { return SourceKindURLImport }

func (s URLImport) String() string {
	return fmt.Sprintf("%s:%s", s.Platform, s.URL)
}

func (URLImport) isSourceDescriptor() {}

// SegmentedStream is an HLS recording; the manifest URL is composed from Endpoint, Env and the job identifiers.
type SegmentedStream struct {
	Endpoint string
	Env      string
}

func (SegmentedStream) Kind() SourceKind { return SourceKindSegmentedStream }

func (s SegmentedStream) String() string {
	return fmt.Sprintf("stream:%s/%s", s.Endpoint, s.Env)
}

func (SegmentedStream) isSourceDescriptor() {}
