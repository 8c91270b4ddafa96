package filmstrip

import (
	"fmt"
	"path"
	"sort"
)

type MediaType string

const (
	MediaTypeVideo MediaType = "VIDEO"
)

// A JobDescriptor identifies one content item to process. It is created by a job source and never modified.
type JobDescriptor struct {
	EntityID  string
	ContentID string
	MediaType MediaType
	Source    SourceDescriptor
}

func (j JobDescriptor) String() string {
	return fmt.Sprintf("%s/%s", j.EntityID, j.ContentID)
}

func (j JobDescriptor) validate() error {
	if j.EntityID == "" || j.ContentID == "" {
		return fmt.Errorf("job %q: entity and content IDs are required", j.String())
	}
	if j.Source == nil {
		return fmt.Errorf("job %q: missing source", j.String())
	}
	return nil
}

// LocalMedia is the resolved input file for a job. It lives inside the job's working directory and is removed with it.
type LocalMedia struct {
	Path string
}

// An Artifact is one compressed filmstrip image on local disk.
type Artifact struct {
	Filename string
	Path     string
	Sequence int
}

// ArtifactSet is every artifact generated for a job. Its canonical order is the lexical order of filenames, which
// equals sequence order because filenames are zero-padded.
type ArtifactSet []Artifact

// Sorted returns a copy of the set in canonical order.
func (s ArtifactSet) Sorted() ArtifactSet {
	sorted := make(ArtifactSet, len(s))
	copy(sorted, s)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Filename < sorted[j].Filename
	})
	return sorted
}

// Keys returns the object key of every artifact in canonical order, given the key prefix they are published under.
func (s ArtifactSet) Keys(prefix string) []string {
	sorted := s.Sorted()
	keys := make([]string, 0, len(sorted))
	for _, a := range sorted {
		keys = append(keys, path.Join(prefix, a.Filename))
	}
	return keys
}

// ArtifactIndex is the published manifest of a job's artifacts. A non-empty index in the store is the proof that the
// job has completed.
type ArtifactIndex struct {
	ArtifactKeys []string `json:"filmstrip_file_names"`
}

func (i ArtifactIndex) IsComplete() bool {
	return len(i.ArtifactKeys) > 0
}
