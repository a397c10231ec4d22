// Package scheduler parses scheduler command flags and runs the JSON API
// server.
package scheduler

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/meetgrid/meetgrid/internal/platform/config"
	"github.com/meetgrid/meetgrid/internal/platform/otel"
	"github.com/meetgrid/meetgrid/internal/scheduling/session"
	"github.com/meetgrid/meetgrid/internal/services/scheduler/app"
)

// Config holds scheduler command configuration.
type Config struct {
	HTTPAddr            string `env:"MEETGRID_SCHEDULER_HTTP_ADDR"   envDefault:"localhost:8090"`
	SchedulingDBPath    string `env:"MEETGRID_SCHEDULER_DB_PATH"`
	NotificationsDBPath string `env:"MEETGRID_NOTIFICATIONS_DB_PATH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address")
	fs.StringVar(&cfg.SchedulingDBPath, "db-path", cfg.SchedulingDBPath, "scheduler sqlite database path")
	fs.StringVar(&cfg.NotificationsDBPath, "notifications-db-path", cfg.NotificationsDBPath, "notifications sqlite database path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the scheduler server.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "scheduler")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	sessions, err := session.LoadConfigFromEnv(nil)
	if err != nil {
		return err
	}

	return app.Run(ctx, app.Config{
		HTTPAddr:            cfg.HTTPAddr,
		SchedulingDBPath:    cfg.SchedulingDBPath,
		NotificationsDBPath: cfg.NotificationsDBPath,
		Sessions:            sessions,
	})
}
