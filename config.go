package filmstrip

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Config is everything a batch run needs beyond credentials. It is built once at startup and passed down explicitly.
type Config struct {
	Layout Layout `yaml:"layout"`
	Bucket string `yaml:"bucket"`

	JobWorkers     int `yaml:"job_workers"`
	SegmentWorkers int `yaml:"segment_workers"`
	UploadWorkers  int `yaml:"upload_workers"`

	// Filmstrip sampling and tiling.
	FramesPerSecond int `yaml:"fps"`
	TileColumns     int `yaml:"tile_columns"`
	TileRows        int `yaml:"tile_rows"`
	FrameWidth      int `yaml:"frame_width"`

	Env string `yaml:"env"`
	// StreamEndpoints maps an environment name to the segmented stream server for that environment.
	StreamEndpoints map[string]string `yaml:"stream_endpoints"`
}

var DefaultConfig = Config{
	Layout:          DefaultLayout,
	Bucket:          "staticassets.goldcast.com",
	JobWorkers:      runtime.NumCPU(),
	SegmentWorkers:  8,
	UploadWorkers:   5,
	FramesPerSecond: 2,
	TileColumns:     5,
	TileRows:        6,
	FrameWidth:      200,
	Env:             "prod",
	StreamEndpoints: map[string]string{
		"prod":  "https://stream.goldcast.io",
		"alpha": "https://stream.alpha.goldcast.io",
	},
}

// StreamEndpoint returns the stream server for the configured environment. Any environment other than prod without
// its own entry falls back to alpha.
func (c Config) StreamEndpoint() (string, error) {
	if endpoint, ok := c.StreamEndpoints[c.Env]; ok && endpoint != "" {
		return endpoint, nil
	}
	if c.Env != "prod" {
		if endpoint, ok := c.StreamEndpoints["alpha"]; ok && endpoint != "" {
			return endpoint, nil
		}
	}
	return "", fmt.Errorf("no stream endpoint configured for env %q", c.Env)
}

func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.TrimSpace(c.Env) == "" {
		return errors.New("env is required")
	}
	for name, value := range map[string]int{
		"job_workers":     c.JobWorkers,
		"segment_workers": c.SegmentWorkers,
		"upload_workers":  c.UploadWorkers,
		"fps":             c.FramesPerSecond,
		"tile_columns":    c.TileColumns,
		"tile_rows":       c.TileRows,
		"frame_width":     c.FrameWidth,
	} {
		if value < 1 {
			return fmt.Errorf("%s must be >= 1", name)
		}
	}
	return nil
}
