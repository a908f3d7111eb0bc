package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("records:\n  path: /tmp/records.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "sqlite", cfg.Records.Driver)
	assert.Equal(t, 20, cfg.Search.DefaultPageSize)
	assert.Equal(t, 100, cfg.Search.MaxPageSize)
	assert.Equal(t, "", cfg.Index.Dir)
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("CARESEARCH_TEST_DSN", "postgres://u:p@db/care")

	cfg, err := Parse([]byte(`
env: ${CARESEARCH_TEST_ENV:-prod}
records:
  driver: postgres
  dsn: ${CARESEARCH_TEST_DSN}
search:
  cache_size: 500
  cache_ttl_sec: 30
`))
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "postgres://u:p@db/care", cfg.Records.DSN)
	assert.Equal(t, 30*time.Second, cfg.Search.CacheTTL())
	assert.Equal(t, 500, cfg.Search.CacheSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "unknown env",
			cfg:  Config{Env: "staging", Records: RecordsConfig{Driver: "sqlite", Path: "x.db"}},
			want: `env must be one of local, dev, test, prod, got "staging"`,
		},
		{
			name: "unknown driver",
			cfg:  Config{Env: "local", Records: RecordsConfig{Driver: "mysql"}},
			want: `records.driver must be "sqlite" or "postgres", got "mysql"`,
		},
		{
			name: "postgres without dsn",
			cfg:  Config{Env: "local", Records: RecordsConfig{Driver: "postgres"}},
			want: "records.dsn is required for the postgres driver",
		},
		{
			name: "default page over max",
			cfg: Config{Env: "local", Records: RecordsConfig{Driver: "sqlite", Path: "x.db"},
				Search: SearchConfig{DefaultPageSize: 200, MaxPageSize: 100}},
			want: "search.default_page_size (200) exceeds search.max_page_size (100)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caresearch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: test\nindex:\n  dir: /var/idx\n  rebuild_on_start: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "/var/idx", cfg.Index.Dir)
	assert.True(t, cfg.Index.RebuildOnStart)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadShippedConfig(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("RECORDS_DRIVER", "")
	cfg, err := Load(filepath.Join("..", "..", "config", "local.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Env)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":memory:", cfg.Records.Path)
}
