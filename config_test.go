package filmstrip

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestConfigStreamEndpoint(t *testing.T) {
	assert := assert_.New(t)

	c := DefaultConfig
	endpoint, err := c.StreamEndpoint()
	assert.NoError(err)
	assert.Equal("https://stream.goldcast.io", endpoint)

	c.Env = "alpha"
	endpoint, err = c.StreamEndpoint()
	assert.NoError(err)
	assert.Equal("https://stream.alpha.goldcast.io", endpoint)

	c.Env = "staging"
	endpoint, err = c.StreamEndpoint()
	assert.NoError(err)
	assert.Equal("https://stream.alpha.goldcast.io", endpoint)

	c.StreamEndpoints = map[string]string{"alpha": "https://a"}
	c.Env = "prod"
	_, err = c.StreamEndpoint()
	assert.Error(err)
}

func TestConfigValidate(t *testing.T) {
	assert := assert_.New(t)

	assert.NoError(DefaultConfig.Validate())

	c := DefaultConfig
	c.UploadWorkers = 0
	assert.Error(c.Validate())

	c = DefaultConfig
	c.Bucket = " "
	assert.Error(c.Validate())
}

func TestConfigYAML(t *testing.T) {
	assert := assert_.New(t)

	c := DefaultConfig
	err := yaml.Unmarshal([]byte(`
bucket: other-bucket
job_workers: 3
layout:
  work_root: /tmp/filmstrip
`), &c)
	assert.NoError(err)
	assert.Equal("other-bucket", c.Bucket)
	assert.Equal(3, c.JobWorkers)
	assert.Equal("/tmp/filmstrip", c.Layout.WorkRoot)
	assert.Equal(DefaultLayout.IndexFile, c.Layout.IndexFile)
	assert.Equal(5, c.UploadWorkers)
	assert.NoError(c.Validate())
}
