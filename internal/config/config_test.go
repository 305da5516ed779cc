package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_AppliesCampaignDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: debug
jwt:
  secret: short
  expire_hours: 2
storage:
  type: s3
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, DefaultCampaign(), cfg.Campaign)
}

func TestLoadConfig_OverridesCampaign(t *testing.T) {
	dir := writeConfig(t, `
storage:
  type: s3
campaign:
  cooldown: 1m
  review_threshold: 9999
  evidence_exempt_below: 0
  level_breakpoints: [10, 20]
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Campaign.Cooldown)
	assert.Equal(t, 9999, cfg.Campaign.ReviewThreshold)
	assert.Equal(t, 0, cfg.Campaign.EvidenceExemptBelow)
	assert.Equal(t, []int{10, 20}, cfg.Campaign.LevelBreakpoints)
	assert.Equal(t, 100000, cfg.Campaign.MaxStepCount)
}

func TestLoadConfig_ReleaseRequiresLongSecret(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
jwt:
  secret: too-short
storage:
  type: s3
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret is too short")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestCampaignConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *CampaignConfig)
		ok     bool
	}{
		{"defaults", func(c *CampaignConfig) {}, true},
		{"negative cooldown", func(c *CampaignConfig) { c.Cooldown = -time.Second }, false},
		{"zero max steps", func(c *CampaignConfig) { c.MaxStepCount = 0 }, false},
		{"quality too high", func(c *CampaignConfig) { c.JPEGQuality = 101 }, false},
		{"breakpoints not increasing", func(c *CampaignConfig) { c.LevelBreakpoints = []int{100, 100} }, false},
		{"single breakpoint", func(c *CampaignConfig) { c.LevelBreakpoints = []int{100} }, false},
		{"zero confirmation ttl", func(c *CampaignConfig) { c.ConfirmationTTL = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCampaign()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCampaignConfig_Location(t *testing.T) {
	c := DefaultCampaign()
	assert.Equal(t, time.Local, c.Location())

	c.Timezone = "UTC"
	assert.Equal(t, "UTC", c.Location().String())

	c.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, c.Location())
}
