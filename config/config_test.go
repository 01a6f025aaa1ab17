package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skate-match-system/engine"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/skate")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "5200", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 24*time.Hour, cfg.ReplyWindow)
	assert.Equal(t, 4, cfg.CommitMaxAttempts)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, engine.DefaultWord, cfg.Word())
}

func TestParseR2(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "acct")
	t.Setenv("R2_BUCKET_NAME", "videos")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.True(t, cfg.R2.Enabled())
	assert.Equal(t, "videos", cfg.R2.Bucket)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing dsn", map[string]string{"DATABASE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql", "DATABASE_URL": "x"}},
		{"bad word", map[string]string{"DATABASE_DRIVER": "memory", "GAME_WORD": "PIG"}},
		{"too many attempts", map[string]string{"DATABASE_DRIVER": "memory", "COMMIT_MAX_ATTEMPTS": "9"}},
		{"not a duration", map[string]string{"DATABASE_DRIVER": "memory", "REPLY_WINDOW": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
