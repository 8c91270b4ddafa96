package objectstore

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Endpoint string `yaml:"endpoint"`
	// AccessKey and SecretKey are optional; without them credentials come from the AWS environment, shared
	// credentials file or instance role.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

var DefaultConfig = Config{
	Endpoint: "s3.amazonaws.com",
	Region:   "us-east-1",
	UseSSL:   true,
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.New("access key and secret key must be set together")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
