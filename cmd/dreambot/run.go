package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreambot/dreambot/atproto/client"
	"github.com/dreambot/dreambot/dreambot"
	"github.com/dreambot/dreambot/firehose"
	"github.com/dreambot/dreambot/imagegen"
	"github.com/dreambot/dreambot/util"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "consume the firehose and reply to trigger posts",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "relay-host",
			Usage:   "method, hostname, and port of relay to subscribe to",
			Value:   "wss://bsky.network",
			EnvVars: []string{"DREAMBOT_RELAY_HOST", "ATP_RELAY_HOST"},
		},
		&cli.StringFlag{
			Name:    "imagine-url",
			Usage:   "URL of the image generation endpoint",
			EnvVars: []string{"IMAGINE_URL"},
		},
		&cli.StringFlag{
			Name:    "admin-listen",
			Usage:   "address for the health and metrics HTTP server; empty to disable",
			Value:   ":3990",
			EnvVars: []string{"DREAMBOT_ADMIN_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "number of commits processed concurrently (1 processes each frame fully before reading the next)",
			Value:   1,
			EnvVars: []string{"DREAMBOT_WORKERS"},
		},
		&cli.DurationFlag{
			Name:    "trigger-timeout",
			Usage:   "upper bound on handling a single trigger post (0 for no bound)",
			EnvVars: []string{"DREAMBOT_TRIGGER_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "generation-timeout",
			Usage:   "timeout for a single image generation request (0 for no timeout)",
			Value:   5 * time.Minute,
			EnvVars: []string{"DREAMBOT_GENERATION_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:    "parent-height",
			Usage:   "how many ancestor posts to fetch when rebuilding a thread prompt",
			Value:   dreambot.DefaultParentHeight,
			EnvVars: []string{"DREAMBOT_PARENT_HEIGHT"},
		},
		&cli.Int64Flag{
			Name:    "cursor",
			Usage:   "firehose sequence number to start from (default is the live head)",
			EnvVars: []string{"DREAMBOT_CURSOR"},
		},
	},
	Action: runBot,
}

func runBot(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := requireFlags(cctx, "username", "password", "imagine-url"); err != nil {
		return err
	}

	logger := configLogger(cctx, os.Stdout)
	shutdownOTEL := configOTEL(ctx, "dreambot")
	defer shutdownOTEL()

	sess, err := client.LoginWithPassword(ctx, client.LoginConfig{
		Host:       cctx.String("pds-host"),
		Identifier: cctx.String("username"),
		Password:   cctx.String("password"),
		HTTPClient: util.NewHTTPClient(util.HTTPClientConfig{
			Timeout: 30 * time.Second,
			Logger:  logger,
		}),
	})
	if err != nil {
		return fmt.Errorf("logging in to %s: %w", cctx.String("pds-host"), err)
	}
	logger.Info("logged in", "did", sess.AccountDID, "handle", sess.AccountHandle)

	images := imagegen.NewClient(cctx.String("imagine-url"), imagegen.Config{
		Timeout: cctx.Duration("generation-timeout"),
		Logger:  logger,
	})

	bot := dreambot.NewBot(sess, images, dreambot.Config{
		SelfDID:        *sess.AccountDID,
		TriggerTimeout: cctx.Duration("trigger-timeout"),
		ParentHeight:   cctx.Int("parent-height"),
		Logger:         logger,
	})

	var sched firehose.Scheduler
	if workers := cctx.Int("workers"); workers > 1 {
		sched = firehose.NewParallelScheduler(workers, "dreambot", logger, bot.HandleCommit)
		logger.Info("firehose scheduler configured", "scheduler", "parallel", "workers", workers)
	} else {
		sched = firehose.NewSequentialScheduler("dreambot", logger, bot.HandleCommit)
		logger.Info("firehose scheduler configured", "scheduler", "sequential")
	}
	defer sched.Shutdown()

	consumer := &firehose.Consumer{
		RelayHost: cctx.String("relay-host"),
		UserAgent: "dreambot/" + versioninfo.Short(),
		Scheduler: sched,
		Logger:    logger,
		Cursor:    cctx.Int64("cursor"),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return consumer.Run(gctx)
	})
	if addr := cctx.String("admin-listen"); addr != "" {
		admin := newAdminServer(logger, consumer)
		g.Go(func() error {
			return runAdminServer(gctx, admin, addr)
		})
	}

	logger.Info("dreambot is listening", "relay", consumer.RelayHost)
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("dreambot shutting down")
	return nil
}
