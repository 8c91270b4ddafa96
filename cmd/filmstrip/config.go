package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/goldcast/filmstrip-migration"
	"github.com/goldcast/filmstrip-migration/jobsource"
	"github.com/goldcast/filmstrip-migration/objectstore"
)

type appConfig struct {
	filmstrip.Config `yaml:",inline"`

	FFmpeg        string `yaml:"ffmpeg"`
	YtDlp         string `yaml:"yt_dlp"`
	YouTubeNative bool   `yaml:"youtube_native"`
	Ledger        string `yaml:"ledger"`

	ObjectStore objectstore.Config `yaml:"object_store"`
	Database    jobsource.Config   `yaml:"database"`
}

func defaultAppConfig() appConfig {
	cfg := appConfig{
		Config:      filmstrip.DefaultConfig,
		FFmpeg:      "ffmpeg",
		Ledger:      "filmstrip-ledger.db",
		ObjectStore: objectstore.DefaultConfig,
		Database:    jobsource.DefaultConfig,
	}
	cfg.StreamEndpoints = make(map[string]string, len(filmstrip.DefaultConfig.StreamEndpoints))
	for env, endpoint := range filmstrip.DefaultConfig.StreamEndpoints {
		cfg.StreamEndpoints[env] = endpoint
	}
	return cfg
}

// ValidateLocal checks the settings that do not involve the database or the object store.
func (c appConfig) ValidateLocal() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Ledger == "" {
		return errors.New("ledger path is required")
	}
	return nil
}

// Validate checks everything a batch needs.
func (c appConfig) Validate() error {
	if err := c.ValidateLocal(); err != nil {
		return err
	}
	if err := c.ObjectStore.Validate(); err != nil {
		return fmt.Errorf("object_store: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// redacted returns a copy that is safe to print.
func (c appConfig) redacted() appConfig {
	if c.ObjectStore.SecretKey != "" {
		c.ObjectStore.SecretKey = "********"
	}
	if c.Database.URL != "" {
		c.Database.URL = redactURL(c.Database.URL)
	}
	return c
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{Name: "config", Aliases: []string{"c"}, Usage: "load settings from YAML `FILE`", EnvVars: []string{"FILMSTRIP_CONFIG"}},
		&cli.StringFlag{Name: "env", Usage: "deployment environment, selects the stream endpoint", EnvVars: []string{"FILMSTRIP_ENV", "ENV"}},
		&cli.StringFlag{Name: "bucket", Usage: "artifact `BUCKET`", EnvVars: []string{"FILMSTRIP_BUCKET", "S3_BUCKET_STATIC_ASSETS"}},
		&cli.PathFlag{Name: "work-root", Usage: "local working `DIR`", EnvVars: []string{"FILMSTRIP_WORK_ROOT"}},
		&cli.IntFlag{Name: "job-workers", Usage: "number of jobs to process at once", EnvVars: []string{"FILMSTRIP_JOB_WORKERS"}},
		&cli.IntFlag{Name: "segment-workers", Usage: "parallel segment downloads per job", EnvVars: []string{"FILMSTRIP_SEGMENT_WORKERS"}},
		&cli.IntFlag{Name: "upload-workers", Usage: "parallel artifact uploads per job", EnvVars: []string{"FILMSTRIP_UPLOAD_WORKERS"}},
		&cli.StringFlag{Name: "ffmpeg", Usage: "ffmpeg `BINARY`", EnvVars: []string{"FILMSTRIP_FFMPEG"}},
		&cli.StringFlag{Name: "yt-dlp", Usage: "yt-dlp `BINARY`", EnvVars: []string{"FILMSTRIP_YT_DLP"}},
		&cli.BoolFlag{Name: "youtube-native", Usage: "download YouTube videos without yt-dlp", EnvVars: []string{"FILMSTRIP_YOUTUBE_NATIVE"}},
		&cli.StringFlag{Name: "database-url", Usage: "job database `URL` (postgres:// or sqlite:FILE)", EnvVars: []string{"FILMSTRIP_DATABASE_URL", "DATABASE_URL"}},
		&cli.StringFlag{Name: "s3-endpoint", Usage: "object store `HOST`", EnvVars: []string{"FILMSTRIP_S3_ENDPOINT"}},
		&cli.StringFlag{Name: "s3-access-key", EnvVars: []string{"AWS_ACCESS_KEY_ID"}},
		&cli.StringFlag{Name: "s3-secret-key", EnvVars: []string{"AWS_SECRET_ACCESS_KEY"}},
		&cli.StringFlag{Name: "s3-region", EnvVars: []string{"AWS_REGION"}},
		&cli.PathFlag{Name: "ledger", Usage: "run history database `FILE`", EnvVars: []string{"FILMSTRIP_LEDGER"}},
		&cli.BoolFlag{Name: "log-json", Usage: "log JSON lines instead of console output", EnvVars: []string{"FILMSTRIP_LOG_JSON"}},
		&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", EnvVars: []string{"FILMSTRIP_DEBUG"}},
	}
}

// loadConfig builds the effective configuration: defaults, then the --config file, then any flag or environment
// variable that was set. It does not validate; each command checks what it needs.
func loadConfig(c *cli.Context) (appConfig, error) {
	cfg := defaultAppConfig()
	if path := c.Path("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	setString := func(name string, target *string) {
		if c.IsSet(name) {
			*target = c.String(name)
		}
	}
	setInt := func(name string, target *int) {
		if c.IsSet(name) {
			*target = c.Int(name)
		}
	}
	setString("env", &cfg.Env)
	setString("bucket", &cfg.Bucket)
	if c.IsSet("work-root") {
		cfg.Layout.WorkRoot = c.Path("work-root")
	}
	setInt("job-workers", &cfg.JobWorkers)
	setInt("segment-workers", &cfg.SegmentWorkers)
	setInt("upload-workers", &cfg.UploadWorkers)
	setString("ffmpeg", &cfg.FFmpeg)
	setString("yt-dlp", &cfg.YtDlp)
	if c.IsSet("youtube-native") {
		cfg.YouTubeNative = c.Bool("youtube-native")
	}
	setString("database-url", &cfg.Database.URL)
	setString("s3-endpoint", &cfg.ObjectStore.Endpoint)
	setString("s3-access-key", &cfg.ObjectStore.AccessKey)
	setString("s3-secret-key", &cfg.ObjectStore.SecretKey)
	setString("s3-region", &cfg.ObjectStore.Region)
	if c.IsSet("ledger") {
		cfg.Ledger = c.Path("ledger")
	}

	return cfg, nil
}
