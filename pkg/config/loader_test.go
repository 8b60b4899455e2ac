package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Port    int           `env:"PORT" envDefault:"8080"`
	TTL     time.Duration `env:"TTL" envDefault:"30s"`
	Brokers []string      `env:"BROKERS" envSeparator:","`
}

type checked struct {
	Name string `env:"NAME"`
}

func (c *checked) Validate() error {
	if c.Name == "" {
		return errors.New("NAME is required")
	}
	return nil
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load[sample]()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.TTL)
	assert.Empty(t, cfg.Brokers)
}

func TestLoad_Prefix(t *testing.T) {
	t.Setenv("CATALOG_PORT", "9000")
	t.Setenv("CATALOG_BROKERS", "a:9092,b:9092")

	cfg, err := Load[sample](env.Options{Prefix: "CATALOG_"})
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("TTL", "soon")

	_, err := Load[sample]()
	assert.ErrorContains(t, err, "parse config")
}

func TestLoad_RunsValidator(t *testing.T) {
	_, err := Load[checked]()
	assert.ErrorContains(t, err, "NAME is required")

	t.Setenv("NAME", "catalog")
	cfg, err := Load[checked]()
	require.NoError(t, err)
	assert.Equal(t, "catalog", cfg.Name)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.env")
	require.NoError(t, os.WriteFile(path, []byte("DOTENV_FRESH=from-file\nDOTENV_PRESET=from-file\n"), 0o600))

	t.Setenv("DOTENV_PRESET", "from-env")
	require.NoError(t, os.Unsetenv("DOTENV_FRESH"))
	t.Cleanup(func() { _ = os.Unsetenv("DOTENV_FRESH") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("DOTENV_FRESH"))
	assert.Equal(t, "from-env", os.Getenv("DOTENV_PRESET"))
}
