package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "dreambot",
		Usage:   "replies to 'cc: dreambot' posts with generated images",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "pds-host",
			Usage:   "method, hostname, and port of PDS (or entryway) the bot account logs in to",
			Value:   "https://bsky.social",
			EnvVars: []string{"DREAMBOT_PDS_HOST", "ATP_PDS_HOST"},
		},
		&cli.StringFlag{
			Name:    "username",
			Usage:   "bot account handle or DID",
			EnvVars: []string{"BLUESKY_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "bot account (app) password",
			EnvVars: []string{"BLUESKY_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"DREAMBOT_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		purgePostsCmd,
		extractPromptCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// missing credentials are a startup error, never a runtime one
func requireFlags(cctx *cli.Context, names ...string) error {
	var missing []string
	for _, n := range names {
		if cctx.String(n) == "" {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
