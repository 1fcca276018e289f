package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/rembg-batch/batch"
	"github.com/chaos-io/rembg-batch/config"
	"github.com/chaos-io/rembg-batch/logger"
	"github.com/chaos-io/rembg-batch/rembg"
	"github.com/chaos-io/rembg-batch/schedule"
	"github.com/chaos-io/rembg-batch/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args, "")
	if errors.Is(err, config.ErrHelp) {
		config.Usage(os.Stderr)
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	log, err := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	entry := logrus.NewEntry(log)

	remover, err := rembg.New(cfg.RemoverOptions())
	if err != nil {
		entry.WithError(err).Error("build remover")
		return 1
	}
	b := batch.New(remover, cfg.BatchOptions())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithLogEntry(ctx, entry)

	if cfg.Listen == "" && cfg.Schedule == "" {
		return once(ctx, b, cfg)
	}

	runBatch := func(ctx context.Context) (*batch.Summary, error) {
		return b.Run(ctx, cfg.InputDir, cfg.OutputDir)
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Listen != "" {
		srv := server.New(b, cfg.InputDir, cfg.OutputDir, entry)
		// 定时任务和 HTTP 共用一把锁
		runBatch = srv.RunBatch
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.Listen)
		})
	}
	if cfg.Schedule != "" {
		sched, err := schedule.New(cfg.Schedule, entry.WithField("schedule", cfg.Schedule), func(ctx context.Context) error {
			s, err := runBatch(ctx)
			if err != nil {
				return err
			}
			if !s.OK() {
				return errors.Errorf("%d of %d files failed", len(s.Failed), s.Found)
			}
			return nil
		})
		if err != nil {
			entry.WithError(err).Error("build scheduler")
			return 1
		}
		g.Go(func() error {
			return sched.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		entry.WithError(err).Error("stopped")
		return 1
	}
	return 0
}

func once(ctx context.Context, b *batch.Batch, cfg config.Config) int {
	log := logger.Entry(ctx)
	log.Infof("removing backgrounds: %s -> %s", cfg.InputDir, cfg.OutputDir)

	s, err := b.Run(ctx, cfg.InputDir, cfg.OutputDir)
	if err != nil {
		log.WithError(err).Error("batch aborted")
		return 1
	}
	if !s.OK() {
		for _, f := range s.Failed {
			log.WithField("file", f.Name).Error(f.Error)
		}
		log.Errorf("%d of %d files failed", len(s.Failed), s.Found)
		return 1
	}
	return 0
}
