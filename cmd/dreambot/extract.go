package main

import (
	"fmt"
	"strings"

	"github.com/dreambot/dreambot/dreambot"

	"github.com/urfave/cli/v2"
)

var extractPromptCmd = &cli.Command{
	Name:      "extract-prompt",
	Usage:     "print the prompt the bot would read from a post text",
	ArgsUsage: `<text>`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "reply",
			Usage: "parse as a reply post (accepts 'update:' as well as 'generate:')",
		},
	},
	Action: func(cctx *cli.Context) error {
		text := strings.Join(cctx.Args().Slice(), " ")
		if text == "" {
			return fmt.Errorf("need post text as an argument")
		}
		if !dreambot.ShouldTrigger(text) {
			fmt.Fprintln(cctx.App.Writer, "(no trigger phrase)")
		}
		if cctx.Bool("reply") {
			fmt.Fprintln(cctx.App.Writer, dreambot.ExtractReplyPrompt(text))
		} else {
			fmt.Fprintln(cctx.App.Writer, dreambot.ExtractRootPrompt(text))
		}
		return nil
	},
}
