package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/kozaktomas/rollcall/internal/capture"
	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/console"
	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/database"
	"github.com/kozaktomas/rollcall/internal/facematch"
	"github.com/kozaktomas/rollcall/internal/gallery"
	"github.com/kozaktomas/rollcall/internal/notify"
	"github.com/kozaktomas/rollcall/internal/session"
	"github.com/kozaktomas/rollcall/internal/web"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "Take attendance from a camera using face recognition",
	Long: `Rollcall watches a camera in fixed-length rounds, recognizes enrolled
faces against a gallery of reference images, writes one attendance record per
round and sends the present/absent roster to a messaging gateway.

Press q and Enter (or Ctrl+C) to stop.`,
	SilenceUsage: true,
	RunE:         runSession,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().Int("rounds", 0, "Stop after this many rounds (0 = run until stopped)")
	rootCmd.Flags().Bool("no-keyboard", false, "Do not watch stdin for the quit key")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func runSession(cmd *cobra.Command, args []string) error {
	maxRounds := mustGetInt(cmd, "rounds")
	noKeyboard := mustGetBool(cmd, "no-keyboard")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	source, err := newSource(cfg)
	if err != nil {
		return err
	}
	extractor := newExtractor(cfg)

	store, err := gallery.NewStore(cfg.Gallery.DatasetDir)
	if err != nil {
		return err
	}
	builder := gallery.NewBuilder(store, extractor, cfg.Session.AcceptThreshold)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
	}

	queue := notify.NewQueue(newSender(cfg), cfg.Notify.Destination, rosterTemplate(cfg), cfg.Notify.Delay, clock.New())
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		queue.Run(ctx)
	}()

	ctrl := session.New(source, extractor, builder, queue, session.Options{
		RoundDuration: cfg.Session.RoundDuration,
		RestInterval:  cfg.Session.RestInterval,
		AttendanceDir: cfg.Session.AttendanceDir,
		MaxRounds:     maxRounds,
		FrameFilter:   capture.NewFrameFilter(cfg.Session.FrameDedupThreshold),
	})
	if sink != nil {
		ctrl.Sink = sink
	}

	interactive := console.IsInteractive(os.Stdin)
	if interactive && console.IsInteractive(os.Stdout) {
		ctrl.Display = console.NewRoundDisplay(os.Stdout)
	}
	if interactive && !noKeyboard {
		go console.WatchQuit(ctx, cancel, os.Stdin)
	}

	var server *web.Server
	if cfg.Web.Port > 0 {
		server = startServer(cfg, store, extractor, builder, sink)
		ctrl.OnRoundClosed = server.Board().Publish
	}

	fmt.Printf("Camera: %s\n", source.Name())
	fmt.Printf("Rounds of %s with %s rest, records in %s\n",
		cfg.Session.RoundDuration, cfg.Session.RestInterval, cfg.Session.AttendanceDir)

	runErr := ctrl.Run(ctx)
	if runErr != nil && errors.Is(runErr, session.ErrSourceUnavailable) {
		log.Printf("FATAL: %v", runErr)
	}

	queue.Close()
	select {
	case <-queueDone:
	case <-time.After(constants.NotifyShutdownTimeout):
		log.Printf("WARNING: notify: rosters still sending after %s, exiting", constants.NotifyShutdownTimeout)
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}

	fmt.Printf("Stopped after %d rounds (%s)\n", ctrl.Rounds(), ctrl.State())
	return runErr
}

func startServer(cfg *config.Config, store *gallery.Store, extractor facematch.Extractor, builder *gallery.Builder, sink database.AttendanceSink) *web.Server {
	enroller := gallery.NewEnroller(store, extractor)
	enroller.Lookalikes = builder
	enroller.LookalikeDistance = cfg.Gallery.LookalikeDistance

	deps := web.Deps{
		Counter:  store,
		Enroller: enroller,
	}
	if sink != nil {
		deps.Rounds = sink
	}

	server := web.NewServer(cfg.Web, deps)
	go func() {
		if err := server.Start(); err != nil {
			log.Printf("WARNING: %v", err)
		}
	}()
	fmt.Printf("API listening on http://%s:%d/api/v1\n", cfg.Web.Host, cfg.Web.Port)
	return server
}
