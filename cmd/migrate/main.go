package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"

	"event_ticketing/internal/pkg/config"
	"event_ticketing/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	var (
		direction = flag.String("direction", "up", "up | down | version")
		steps     = flag.Int("steps", 0, "number of steps for up/down, 0 means all")
		force     = flag.Int("force", -1, "force the schema version and clear the dirty flag")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.InitLogger(cfg.App.Env, cfg.Log.Level); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.Log

	m, err := migrate.New(cfg.Migrations.Path, databaseURL(cfg.Database))
	if err != nil {
		lg.Fatal("open migrations", zap.Error(err))
	}
	defer m.Close()

	if *force >= 0 {
		if err := m.Force(*force); err != nil {
			lg.Fatal("force version", zap.Int("version", *force), zap.Error(err))
		}
		lg.Info("version forced", zap.Int("version", *force))
		return
	}

	switch *direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			lg.Fatal("read version", zap.Error(verr))
		}
		lg.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return
	default:
		lg.Fatal("unknown direction", zap.String("direction", *direction))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			lg.Fatal("database is dirty, fix the failed migration and rerun with -force",
				zap.Int("version", dirtyErr.Version))
		}
		lg.Fatal("migration failed", zap.Error(err))
	}
	lg.Info("migration successful", zap.String("direction", *direction))
}

func databaseURL(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}
