package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/capture"
	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/database"
	"github.com/kozaktomas/rollcall/internal/database/mariadb"
	"github.com/kozaktomas/rollcall/internal/database/postgres"
	"github.com/kozaktomas/rollcall/internal/embedding"
	"github.com/kozaktomas/rollcall/internal/notify"
)

func newSource(cfg *config.Config) (capture.Source, error) {
	source, err := capture.New(capture.Options{
		Mode:     cfg.Camera.Mode,
		URL:      cfg.Camera.URL,
		Username: cfg.Camera.Username,
		Password: cfg.Camera.Password,
		Interval: cfg.Camera.FrameInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring camera: %w", err)
	}
	return source, nil
}

func newExtractor(cfg *config.Config) *embedding.Client {
	return embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim).WithMaxSize(cfg.Session.FrameMaxSize)
}

func newSender(cfg *config.Config) notify.Sender {
	if cfg.Notify.URL == "" {
		fmt.Println("NOTIFY_URL not set, rosters will be logged only")
		return notify.LogSender{}
	}
	return notify.NewWebhookSender(cfg.Notify.URL, cfg.Notify.Token)
}

func rosterTemplate(cfg *config.Config) notify.Template {
	return notify.Template{
		Header:       cfg.Notify.Messages.Header,
		AbsentHeader: cfg.Notify.Messages.AbsentHeader,
		AllPresent:   cfg.Notify.Messages.AllPresent,
	}
}

// openSink connects the attendance mirror. It returns nil when DATABASE_URL is unset.
func openSink(ctx context.Context, cfg *config.Config) (database.AttendanceSink, error) {
	if cfg.Database.URL == "" {
		return nil, nil
	}

	switch cfg.Database.Driver {
	case "mariadb":
		fmt.Printf("Connecting to MariaDB attendance database...\n")
		pool, err := mariadb.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return mariadb.NewAttendanceRepository(pool), nil
	default:
		fmt.Printf("Connecting to PostgreSQL attendance database...\n")
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return postgres.NewAttendanceRepository(pool), nil
	}
}
