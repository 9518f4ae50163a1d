package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gamecafe/panelsync/client"
	"github.com/gamecafe/panelsync/internal/alert"
	"github.com/gamecafe/panelsync/internal/api"
	"github.com/gamecafe/panelsync/internal/config"
	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/realtime"
	"github.com/gamecafe/panelsync/internal/session"
	"github.com/gamecafe/panelsync/internal/socket"
	"github.com/gamecafe/panelsync/internal/watch"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	seedTimeout       = 30 * time.Second
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the panel cache in sync with the realtime feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runService(ctx, cfg, log)
		},
	}
}

func newLogger(level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	log := logrus.New()
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log, nil
}

// seedSession loads the signed-in user and reference data concurrently and
// stores them in the mirror together.
func seedSession(ctx context.Context, src realtime.SessionSource, mirror *session.Mirror) error {
	ctx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()

	var (
		me         model.Doc
		kitchens   []model.Doc
		categories []model.Doc
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if me, err = src.Me(gctx); err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if kitchens, err = src.Kitchens(gctx); err != nil {
			return fmt.Errorf("load kitchens: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if categories, err = src.Categories(gctx); err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	mirror.Update(func(s *session.Snapshot) {
		s.User = session.UserFromDoc(me)
		s.Kitchens = session.KitchensFromDocs(kitchens)
		s.Categories = session.CategoriesFromDocs(categories)
	})

	return nil
}

// syncOptions builds the realtime options for cfg.
func syncOptions(cfg *config.Config, log *logrus.Logger) []realtime.Option {
	header := http.Header{}
	if tok := cfg.APIToken.Value(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	opts := []realtime.Option{
		realtime.WithSocket(cfg.SocketURL, socket.Options{
			Path:        cfg.SocketPath,
			Header:      header,
			MaxAttempts: cfg.ReconnectMaxAttempts,
			DelayMin:    cfg.ReconnectDelayMin,
			DelayMax:    cfg.ReconnectDelayMax,
			Logger:      log,
		}),
		realtime.WithReconnectThreshold(cfg.FullRefreshAfter),
	}

	// Starting the process from a terminal is the operator's go-ahead for
	// audible alerts.
	if cfg.SoundEnabled {
		opts = append(opts, realtime.WithAlerter(func() realtime.Alerter {
			p := alert.NewPlayer(os.Stderr, log)
			p.Unlock()
			return p
		}))
	}

	return opts
}

// runService wires the cache, session mirror, realtime sync, watch hub and ops API and
// blocks until ctx is cancelled or one of them fails.
func runService(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	panel := client.New(cfg.APIURL, client.WithToken(cfg.APIToken.Value()))
	hub := watch.NewHub(log)

	cache, err := querycache.New(log,
		querycache.WithFetcher(panel),
		querycache.WithMaxEntries(cfg.CacheMaxEntries),
		querycache.WithObserver(hub.Publish),
	)
	if err != nil {
		return err
	}

	mirror := session.NewMirror(session.Snapshot{
		LocationID: model.ID(cfg.LocationID),
		Date:       session.Today(time.Now(), cfg.Location()),
	})
	mirror.SetTakeawayPayment(func(table model.Doc) {
		id, _ := table.ID()
		log.WithField("table", id).Info("takeaway payment requested")
	})

	if err := seedSession(ctx, panel, mirror); err != nil {
		return fmt.Errorf("seed session: %w", err)
	}

	// The same client seeds the mirror above and reloads it when the panel
	// reports a kitchen, category or user change.
	opts := append(syncOptions(cfg, log), realtime.WithSessionSource(panel))
	rt := realtime.New(cache, mirror, log, opts...)

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start realtime sync: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Watch connections outlive gctx until the hub has sent its shutdown
	// notice.
	streamCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewRouter(streamCtx, &api.RouterDeps{
			Log:         log,
			Cache:       cache,
			Session:     mirror,
			Socket:      rt,
			Watch:       hub,
			CORSOrigins: cfg.CORSOrigins,
			Version:     config.Version,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g.Go(func() error {
		cache.Run(gctx)
		return nil
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		mirror.WatchDate(gctx, cfg.Location(), time.Now, log)
		return nil
	})

	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("ops api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops api: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		if err := rt.Stop(); err != nil {
			log.WithError(err).Warn("stop realtime sync")
		}
		hub.Shutdown()
		stopStreams()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
