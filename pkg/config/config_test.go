package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverlens/marsphotos/pkg/origin"
)

// clearEnv blanks every bound variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, envs := range envBindings {
		for _, env := range envs {
			t.Setenv(env, "")
		}
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil, missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite://marsphotos.db", cfg.DatabaseURL)
	assert.Equal(t, origin.DefaultAPIKey, cfg.NASAAPIKey)
	assert.Equal(t, origin.DefaultBaseURL, cfg.NASABaseURL)
	assert.Equal(t, 15*time.Second, cfg.OriginTimeout)
	assert.False(t, cfg.DegradeOnOriginError)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DeadLetterEnabled())
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/photos")
	t.Setenv("NASA_API_KEY", "secret")
	t.Setenv("ORIGIN_TIMEOUT", "3s")
	t.Setenv("DEGRADE_ON_ORIGIN_ERROR", "true")
	t.Setenv("LOG_JSON", "1")
	t.Setenv("PUBSUB_PROJECT_ID", "mars")
	t.Setenv("PUBSUB_DLQ_TOPIC", "photos-dlq")

	cfg, err := Load(nil, missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://u:p@db:5432/photos", cfg.DatabaseURL)
	assert.Equal(t, 3*time.Second, cfg.OriginTimeout)
	assert.True(t, cfg.DegradeOnOriginError)
	assert.True(t, cfg.LogJSON)
	assert.True(t, cfg.DeadLetterEnabled())

	oc := cfg.OriginConfig()
	assert.Equal(t, "secret", oc.APIKey)
	assert.Equal(t, 3*time.Second, oc.Timeout)
}

func TestLoadMongoURIWinsOverDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/marsphotos")
	t.Setenv("DATABASE_URL", "postgres://localhost/photos")

	cfg, err := Load(nil, missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017/marsphotos", cfg.DatabaseURL)
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.Int("port", 8080, "")
	flags.String("database-url", "", "")
	flags.Bool("degrade-on-origin-error", false, "")
	require.NoError(t, flags.Parse([]string{"--port=7000", "--degrade-on-origin-error"}))

	cfg, err := Load(flags, missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.True(t, cfg.DegradeOnOriginError)
	assert.Equal(t, "sqlite://marsphotos.db", cfg.DatabaseURL, "unset flags do not shadow defaults")
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// Unset so the file value is applied; t.Setenv restores it afterwards.
	require.NoError(t, os.Unsetenv("FRONTEND_URL"))
	require.NoError(t, os.Unsetenv("APP_ENV"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FRONTEND_URL=https://photos.example\nAPP_ENV=production\n"), 0o600))

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "https://photos.example", cfg.FrontendURL)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero port", map[string]string{"PORT": "0"}},
		{"negative timeout", map[string]string{"ORIGIN_TIMEOUT": "-1s"}},
		{"unparseable timeout", map[string]string{"ORIGIN_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(nil, missingEnvFile(t))
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Config{Port: 8080, DatabaseURL: "sqlite://x.db", OriginTimeout: time.Second}
	require.NoError(t, valid.Validate())

	noDB := valid
	noDB.DatabaseURL = ""
	assert.Error(t, noDB.Validate())

	bigPort := valid
	bigPort.Port = 70000
	assert.Error(t, bigPort.Validate())
}
