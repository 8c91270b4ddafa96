package filmstrip

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"text/template"
)

// Layout describes where things live: object keys in the artifact store and directories on local disk.
type Layout struct {
	// KeyBase prefixes every published key: {KeyBase}/{entity}/{content}/{filename}.
	KeyBase   string `yaml:"key_base"`
	IndexFile string `yaml:"index_file"`
	// SourceKeyTemplate locates StoreRef media, executed with the JobDescriptor.
	SourceKeyTemplate string `yaml:"source_key_template"`
	// PreseededIndexKey is the template index copied by the preseed batch.
	PreseededIndexKey string `yaml:"preseeded_index_key"`
	// WorkRoot holds one directory per job: {WorkRoot}/{entity}/{content}.
	WorkRoot  string `yaml:"work_root"`
	InputFile string `yaml:"input_file"`
	// StreamPath is appended to {endpoint}/{env}/vod/{entity}/{content}/ to build a manifest URL.
	StreamPath string `yaml:"stream_path"`
}

var DefaultLayout = Layout{
	KeyBase:           "content-lab/filmstrip",
	IndexFile:         "filmstrip_index.json",
	SourceKeyTemplate: "content-lab/filestack/custom_assets/{{.EntityID}}/{{.ContentID}}.mp4",
	PreseededIndexKey: "content-lab/filmstrip/pre-seeded/filmstrip_index.json",
	WorkRoot:          "downloads",
	InputFile:         "input.mp4",
	StreamPath:        "hls/1500.m3u8",
}

// KeyPrefix is the key space holding a job's artifacts and index.
func (l Layout) KeyPrefix(job JobDescriptor) string {
	return path.Join(l.KeyBase, job.EntityID, job.ContentID)
}

func (l Layout) IndexKey(job JobDescriptor) string {
	return path.Join(l.KeyPrefix(job), l.IndexFile)
}

func (l Layout) ArtifactKey(job JobDescriptor, filename string) string {
	return path.Join(l.KeyPrefix(job), filename)
}

func (l Layout) SourceKey(job JobDescriptor) (string, error) {
	tmpl, err := template.New("source_key").Option("missingkey=error").Parse(l.SourceKeyTemplate)
	if err != nil {
		return "", fmt.Errorf("parse source key template: %w", err)
	}
	builder := strings.Builder{}
	if err := tmpl.Execute(&builder, &job); err != nil {
		return "", fmt.Errorf("execute source key template: %w", err)
	}
	return builder.String(), nil
}

func (l Layout) WorkDir(job JobDescriptor) string {
	return filepath.Join(l.WorkRoot, job.EntityID, job.ContentID)
}

func (l Layout) InputPath(job JobDescriptor) string {
	return filepath.Join(l.WorkDir(job), l.InputFile)
}

func (l Layout) ManifestURL(job JobDescriptor, stream SegmentedStream) (string, error) {
	base, err := url.Parse(strings.TrimRight(stream.Endpoint, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("parse stream endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("stream endpoint %q is not an absolute URL", stream.Endpoint)
	}
	ref := &url.URL{Path: path.Join(stream.Env, "vod", job.EntityID, job.ContentID, l.StreamPath)}
	return base.ResolveReference(ref).String(), nil
}

func (l Layout) Validate() error {
	for name, value := range map[string]string{
		"key_base":            l.KeyBase,
		"index_file":          l.IndexFile,
		"source_key_template": l.SourceKeyTemplate,
		"work_root":           l.WorkRoot,
		"input_file":          l.InputFile,
		"stream_path":         l.StreamPath,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("layout: %s is required", name)
		}
	}
	if _, err := template.New("source_key").Parse(l.SourceKeyTemplate); err != nil {
		return fmt.Errorf("layout: source_key_template: %w", err)
	}
	return nil
}
