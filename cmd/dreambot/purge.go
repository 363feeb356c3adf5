package main

import (
	"fmt"
	"os"

	"github.com/dreambot/dreambot/atproto/client"
	"github.com/dreambot/dreambot/dreambot"

	"github.com/urfave/cli/v2"
)

var purgePostsCmd = &cli.Command{
	Name:  "purge-posts",
	Usage: "delete every post made by the bot account",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "list posts which would be deleted, without deleting them",
		},
	},
	Action: purgePosts,
}

func purgePosts(cctx *cli.Context) error {
	ctx := cctx.Context
	if err := requireFlags(cctx, "username", "password"); err != nil {
		return err
	}
	logger := configLogger(cctx, os.Stdout)

	sess, err := client.LoginWithPassword(ctx, client.LoginConfig{
		Host:       cctx.String("pds-host"),
		Identifier: cctx.String("username"),
		Password:   cctx.String("password"),
	})
	if err != nil {
		return fmt.Errorf("logging in to %s: %w", cctx.String("pds-host"), err)
	}

	dryRun := cctx.Bool("dry-run")
	n, err := dreambot.PurgePosts(ctx, sess, *sess.AccountDID, dryRun, logger)
	if err != nil {
		return err
	}
	logger.Info("done purging posts", "count", n, "dryRun", dryRun)
	return nil
}
