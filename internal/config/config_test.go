package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	assert_ "github.com/stretchr/testify/assert"

	"github.com/alanbriolat/video-acquirer/internal/session"
)

func TestLoad_Defaults(t *testing.T) {
	assert := assert_.New(t)

	c, err := Load(afero.NewMemMapFs(), "", "/etc/acquire")
	if !assert.NoError(err) {
		return
	}
	assert.Equal("yt-dlp", c.YtdlpBinary)
	assert.Equal([]string{"web", "mobile", "tv", "mweb"}, c.Strategies)
	assert.Equal(600*time.Second, c.AcquireTimeout)
	assert.Equal(500*time.Millisecond, c.Heartbeat)
	assert.Equal(10*time.Minute, c.CacheTTL)
	assert.Equal(32, c.CacheCapacity)
	assert.Equal(HistoryNone, c.History.Driver)

	sc, err := c.Session()
	assert.NoError(err)
	assert.Equal(3*time.Second, sc.Orchestrator.InitialJitter)
	assert.Equal(2*time.Second, sc.Orchestrator.Completion.Interval)
	assert.Len(sc.Orchestrator.Strategies, 4)
	assert.Equal(600*time.Second, sc.Channel.Budget)
}

func TestLoad_FileAndEnv(t *testing.T) {
	assert := assert_.New(t)

	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/etc/acquire/acquire.yaml", []byte(`
output_dir: /srv/media
strategies: [mobile, web]
backoff:
  blocked_min: 1s
  blocked_max: 2s
cache:
  capacity: 4
history:
  driver: bolt
  path: /var/lib/acquire/history.db
`), 0644)
	t.Setenv("ACQUIRE_CACHE_TTL", "1m")
	t.Setenv("ACQUIRE_LOG_LEVEL", "debug")

	c, err := Load(fs, "", "/etc/acquire")
	if !assert.NoError(err) {
		return
	}
	assert.Equal("/srv/media", c.OutputDir)
	assert.Equal([]string{"mobile", "web"}, c.Strategies)
	assert.Equal(time.Second, c.BlockedBackoffMin)
	assert.Equal(4, c.CacheCapacity)
	assert.Equal(time.Minute, c.CacheTTL)
	assert.Equal("debug", c.Log.Level)
	assert.Equal(HistoryBolt, c.History.Driver)

	sc, err := c.Session()
	assert.NoError(err)
	assert.Equal([]string{"mobile", "web"}, sc.Orchestrator.Strategies.Names())
}

func TestLoad_StrategiesFromEnv(t *testing.T) {
	assert := assert_.New(t)

	t.Setenv("ACQUIRE_STRATEGIES", "tv, mweb")
	c, err := Load(afero.NewMemMapFs(), "")
	assert.NoError(err)
	assert.Equal([]string{"tv", "mweb"}, c.Strategies)
}

func TestLoad_Invalid(t *testing.T) {
	for name, env := range map[string][2]string{
		"unknown strategy": {"ACQUIRE_STRATEGIES", "web,desktop"},
		"unknown driver":   {"ACQUIRE_HISTORY_DRIVER", "postgres"},
		"missing path":     {"ACQUIRE_HISTORY_DRIVER", "sqlite"},
		"backoff range":    {"ACQUIRE_BACKOFF_BLOCKED_MIN", "10s"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := Load(afero.NewMemMapFs(), "")
			assert_.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nonexistent/acquire.toml")
	assert_.Error(t, err)
}

func TestConfig_OpenHistory(t *testing.T) {
	assert := assert_.New(t)

	for _, driver := range []HistoryDriver{HistoryBolt, HistorySQLite} {
		c := &Config{History: HistoryConfig{Driver: driver, Path: t.TempDir() + "/history"}}
		db, closeDB, err := c.OpenHistory(nil)
		if assert.NoError(err, driver) {
			assert.NoError(db.WriteRecord(&session.Record{ID: "a", SourceID: "abc123", Status: session.RecordCompleted}))
			records, err := db.ListRecords()
			assert.NoError(err)
			assert.Len(records, 1)
			assert.NoError(closeDB())
		}
	}

	c := &Config{History: HistoryConfig{Driver: HistoryNone}}
	db, closeDB, err := c.OpenHistory(nil)
	assert.NoError(err)
	assert.IsType(session.NilDatabase{}, db)
	assert.NoError(closeDB())
}
