// Package hls reconstructs an HLS recording on local disk: it downloads every segment a manifest references and writes
// a copy of the manifest that points at the local files.
package hls

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goldcast/filmstrip-migration/download"
)

// SegmentSuffix marks a manifest line as a segment reference.
const SegmentSuffix = ".ts"

// A Segment is one segment reference found in a manifest.
type Segment struct {
	// Line is the index of the referencing line in the manifest.
	Line int
	// URL is the reference resolved against the manifest URL.
	URL string
	// Name is the local filename, the basename of URL.
	Name string
}

// SplitLines splits a manifest into lines. Joining the result with "\n" gives back the original bytes.
func SplitLines(manifest []byte) []string {
	return strings.Split(string(manifest), "\n")
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string) []byte {
	return []byte(strings.Join(lines, "\n"))
}

func isSegment(line string) bool {
	return strings.HasSuffix(strings.TrimSpace(line), SegmentSuffix)
}

// ParseSegments finds every line ending in SegmentSuffix and resolves it against base. Relative references resolve
// against the directory of base, absolute ones are kept as they are.
func ParseSegments(lines []string, base *url.URL) ([]Segment, error) {
	var segments []Segment
	for i, line := range lines {
		if !isSegment(line) {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: parse segment reference: %w", i+1, err)
		}
		resolved := base.ResolveReference(ref)
		name, err := download.FilenameFromURL(resolved)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		segments = append(segments, Segment{Line: i, URL: resolved.String(), Name: name})
	}
	return segments, nil
}

// Rewrite returns a copy of lines where every segment line is replaced by the segment's local name. All other lines
// are kept byte for byte and in order. A CRLF line ending on a segment line is kept.
func Rewrite(lines []string, segments []Segment) []string {
	rewritten := make([]string, len(lines))
	copy(rewritten, lines)
	for _, s := range segments {
		if strings.HasSuffix(lines[s.Line], "\r") {
			rewritten[s.Line] = s.Name + "\r"
		} else {
			rewritten[s.Line] = s.Name
		}
	}
	return rewritten
}
