// cmd/bookctl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/Corphon/BookRunner/internal/utils"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:            "bookctl",
		Usage:           "inspect and edit book entry parameters",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "verbose logging"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				utils.GetLogger().SetLogLevel(utils.DEBUG)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "part",
				Usage: "Reads or writes one part of a multipart parameter list",
				Commands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "Prints the content of a part",
						ArgsUsage: "PARAMETER...",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "part `NAME`"},
						},
						Action: getPart,
					},
					{
						Name:      "set",
						Usage:     "Prints the parameters with a part replaced or appended",
						ArgsUsage: "PARAMETER...",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "part `NAME`"},
							&cli.StringFlag{Name: "value", Usage: "part content, one line per newline"},
						},
						Action: setPart,
					},
					{
						Name:      "names",
						Usage:     "Lists the parts in order",
						ArgsUsage: "PARAMETER...",
						Action:    partNames,
					},
				},
			},
			{
				Name:      "interpolate",
				Usage:     "Replaces ${NAME} placeholders in a text",
				ArgsUsage: "TEXT",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "var", Aliases: []string{"v"}, Usage: "variable as `NAME=VALUE`, repeatable"},
				},
				Action: interpolate,
			},
			{
				Name:      "check",
				Usage:     "Reports malformed entries of a chapter file (YAML or JSON)",
				ArgsUsage: "FILE",
				Action:    checkChapter,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newCommand().Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bookctl: %v\n", err)
		os.Exit(1)
	}
}
