package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlens/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tierlens.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New()

		convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
		convey.So(cfg.ThemeCount, convey.ShouldEqual, 3)
		convey.So(cfg.MaxIterations, convey.ShouldEqual, 500)
		convey.So(cfg.SimilarTopN, convey.ShouldEqual, 3)
		convey.So(cfg.TopImagesPerTheme, convey.ShouldEqual, 5)
		convey.So(cfg.HotTakesLimit, convey.ShouldEqual, 8)
		convey.So(cfg.DigestPerCategory, convey.ShouldEqual, 3)
		convey.So(cfg.DivergenceThreshold, convey.ShouldEqual, 1.0)
		convey.So(cfg.Validate(), convey.ShouldBeNil)
	})
}

func TestLoadDefaults(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given no file and no environment", t, func() {
		t.Setenv(config.EnvConfigFile, "")
		cfg, err := config.Load(ctx)

		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg, convey.ShouldResemble, config.New())
	})
}

func TestLoadEnv(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given environment overrides", t, func() {
		t.Setenv(config.EnvConfigFile, "")
		t.Setenv("TIERLENS_ADDR", ":8081")
		t.Setenv("TIERLENS_THEME_COUNT", "5")
		t.Setenv("TIERLENS_DIVERGENCE_THRESHOLD", "0.75")
		t.Setenv("TIERLENS_JOB_RETENTION", "90s")
		t.Setenv("TIERLENS_LOG_FORMAT", "json")

		cfg, err := config.Load(ctx)

		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
		convey.So(cfg.ThemeCount, convey.ShouldEqual, 5)
		convey.So(cfg.DivergenceThreshold, convey.ShouldEqual, 0.75)
		convey.So(cfg.JobRetention, convey.ShouldEqual, 90*time.Second)
		convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
		convey.So(cfg.MaxIterations, convey.ShouldEqual, 500)
	})
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a YAML file", t, func() {
		path := writeConfig(t, `
addr: ":7070"
database_path: "/var/lib/tierlens.db"
max_iterations: 200
popularity_limit: 4
worker_count: 6
`)
		t.Setenv(config.EnvConfigFile, path)

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
		convey.So(cfg.DatabasePath, convey.ShouldEqual, "/var/lib/tierlens.db")
		convey.So(cfg.MaxIterations, convey.ShouldEqual, 200)
		convey.So(cfg.PopularityLimit, convey.ShouldEqual, 4)
		convey.So(cfg.WorkerCount, convey.ShouldEqual, 6)

		convey.Convey("And the environment wins over the file", func() {
			t.Setenv("TIERLENS_MAX_ITERATIONS", "50")
			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.MaxIterations, convey.ShouldEqual, 50)
			convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
		})
	})
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a missing file", t, func() {
		t.Setenv(config.EnvConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := config.Load(ctx)
		convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
	})

	convey.Convey("Given invalid values", t, func() {
		t.Setenv(config.EnvConfigFile, "")
		t.Setenv("TIERLENS_ADDR", ":9080")
		t.Setenv("TIERLENS_THEME_COUNT", "3")
		t.Setenv("TIERLENS_LOG_FORMAT", "text")

		convey.Convey("An empty address is rejected", func() {
			t.Setenv("TIERLENS_ADDR", "")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("A zero theme count is rejected", func() {
			t.Setenv("TIERLENS_THEME_COUNT", "0")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("An unknown log format is rejected", func() {
			t.Setenv("TIERLENS_LOG_FORMAT", "xml")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
