package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/gatewatch/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("Given a fresh config", t, func() {
		cfg := config.New(context.Background())

		Convey("Then the pipeline defaults are set", func() {
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.CameraIDs, ShouldResemble, []string{"cam-entrance", "cam-lobby"})
			So(cfg.SignatureDimension, ShouldEqual, 128)
			So(cfg.AutoThreshold, ShouldEqual, 0.7)
			So(cfg.ReviewThreshold, ShouldEqual, 0.6)
			So(cfg.DuplicateWindow, ShouldEqual, 5*time.Minute)
			So(cfg.MorningEnd, ShouldEqual, 12*time.Hour)
			So(cfg.EveningStart, ShouldEqual, 16*time.Hour)
			So(cfg.DetectionTTL, ShouldEqual, 3*time.Second)
			So(cfg.StatusTTL, ShouldEqual, 30*time.Second)
			So(cfg.SyncMaxAttempts, ShouldEqual, 5)
			So(cfg.SyncInitialDelay, ShouldEqual, 30*time.Second)
			So(cfg.SyncMaxDelay, ShouldEqual, 30*time.Minute)
			So(cfg.HREndpoint, ShouldBeEmpty)
		})
	})
}

func TestLoadDefaults(t *testing.T) {
	Convey("Given no overrides", t, func() {
		Convey("When the config is loaded", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then defaults survive validation", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
			})
		})
	})
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("GATEWATCH_ADDR", ":7070")
	t.Setenv("GATEWATCH_AUTO_THRESHOLD", "0.8")
	t.Setenv("GATEWATCH_QUEUE_SIZE", "500")

	Convey("Given environment overrides", t, func() {
		Convey("When the config is loaded", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then env values win over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.AutoThreshold, ShouldEqual, 0.8)
				So(cfg.DetectionQueueSize, ShouldEqual, 500)
			})
		})
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewatch.yaml")
	if err := os.WriteFile(path, []byte("addr: \":6060\"\nreview_threshold: 0.5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GATEWATCH_CONFIG", path)

	Convey("Given a YAML config file", t, func() {
		Convey("When the config is loaded", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then file values win over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
				So(cfg.ReviewThreshold, ShouldEqual, 0.5)
			})
		})
	})
}

func TestLoadFileEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewatch.yaml")
	if err := os.WriteFile(path, []byte("addr: \":6060\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GATEWATCH_CONFIG", path)
	t.Setenv("GATEWATCH_ADDR", ":5050")

	Convey("Given both a config file and an env override", t, func() {
		Convey("When the config is loaded", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then env wins over the file", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":5050")
			})
		})
	})
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("GATEWATCH_CONFIG", "/nonexistent/gatewatch.yaml")

	Convey("Given a missing config file", t, func() {
		Convey("When the config is loaded", func() {
			_, err := config.Load(context.Background())

			Convey("Then loading fails with a load error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
			})
		})
	})
}

func TestLoadInvalidThresholds(t *testing.T) {
	t.Setenv("GATEWATCH_REVIEW_THRESHOLD", "1.5")

	Convey("Given a review threshold above one", t, func() {
		Convey("When the config is loaded", func() {
			_, err := config.Load(context.Background())

			Convey("Then validation rejects it", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestLoadInvalidDayBoundaries(t *testing.T) {
	t.Setenv("GATEWATCH_MORNING_END", "20h")

	Convey("Given a morning boundary past the evening one", t, func() {
		Convey("When the config is loaded", func() {
			_, err := config.Load(context.Background())

			Convey("Then validation rejects it", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}
