package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "real.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
table_name = "from-file"
trending_score_floor = 0.2
image_sizes = [64, 480]
processed_ttl = "2h"

[blob]
uploads = "file-uploads"
bad_words = "file-bad-words"
`), 0o600))

	t.Setenv(FileEnv, path)
	t.Setenv("TABLE_NAME", "from-env")
	t.Setenv("MIN_TRENDING_COUNT_TO_KEEP", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.TableName)
	assert.Equal(t, 0.2, cfg.TrendingScoreFloor)
	assert.Equal(t, []int{64, 480}, cfg.ImageSizes)
	assert.Equal(t, "file-uploads", cfg.Blob.Uploads)
	assert.Equal(t, "file-bad-words", cfg.Blob.BadWords)
	assert.Equal(t, 3, cfg.MinTrendingCountToKeep)
	assert.Equal(t, 2*time.Hour, cfg.ProcessedTTL)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"IMAGE_SIZES":            "64, 1080",
		"TRENDING_DECAY_PER_DAY": "0.25",
		"USER_POOL_ID":           "pool",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, []int{64, 1080}, cfg.ImageSizes)
	assert.Equal(t, 0.25, cfg.TrendingDecayPerDay)
	assert.Equal(t, "pool", cfg.IdentityPoolIDs.UserPoolID)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "REACTOR_MAX_ROUNDS" {
			return "many", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "REACTOR_MAX_ROUNDS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing table", func(c *Config) { c.TableName = "" }, "TableName"},
		{"decay above one", func(c *Config) { c.TrendingDecayPerDay = 1.5 }, "TrendingDecayPerDay"},
		{"zero ratio", func(c *Config) { c.ModerationRatio = 0 }, "ModerationRatio"},
		{"no image sizes", func(c *Config) { c.ImageSizes = nil }, "ImageSizes"},
		{"bad environment", func(c *Config) { c.Environment = "moon" }, "Environment"},
		{"bad endpoint", func(c *Config) { c.DynamoEndpoint = "not a url" }, "DynamoEndpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
