// cmd/bookctl/commands.go
package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/storage"
	"github.com/Corphon/BookRunner/internal/utils"
)

func output(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

func printLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

func getPart(_ context.Context, cmd *cli.Command) error {
	parameters := cmd.Args().Slice()
	name := cmd.String("name")
	if !models.HasPart(name, parameters) {
		return fmt.Errorf("no part %q", name)
	}
	printLines(output(cmd), models.GetPart(name, parameters))
	return nil
}

func setPart(_ context.Context, cmd *cli.Command) error {
	var content []string
	if value := cmd.String("value"); value != "" {
		content = models.SplitLines(value)
	}
	printLines(output(cmd), models.SetPart(cmd.String("name"), content, cmd.Args().Slice()))
	return nil
}

func partNames(_ context.Context, cmd *cli.Command) error {
	parameters := cmd.Args().Slice()
	if err := models.CheckParts(parameters); err != nil {
		return err
	}
	printLines(output(cmd), models.PartNames(parameters))
	return nil
}

func interpolate(_ context.Context, cmd *cli.Command) error {
	var (
		names  []string
		values = make(map[string]string)
	)
	for _, variable := range cmd.StringSlice("var") {
		name, value, ok := strings.Cut(variable, "=")
		if !ok || name == "" {
			return fmt.Errorf("variable %q is not NAME=VALUE", variable)
		}
		names = append(names, name)
		values[name] = value
	}

	text := strings.Join(cmd.Args().Slice(), " ")
	fmt.Fprintln(output(cmd), models.Interpolate(names, values, text))
	return nil
}

// checkChapter lists every problem of the chapter and fails when there is one.
func checkChapter(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected one chapter file, got %d arguments", cmd.Args().Len())
	}
	path := cmd.Args().First()

	chapter, err := storage.LoadChapterFile(path)
	if err != nil {
		return err
	}

	problems := chapter.CheckEntries()
	for i, entry := range chapter.Entries {
		if !models.IsSupportedType(entry.Type) {
			problems = multierr.Append(problems, fmt.Errorf("entry %d (%s %s): unsupported entry type", i, entry.Type, entry.ID))
		}
		if missing := models.MissingVariables(entry); len(missing) > 0 {
			problems = multierr.Append(problems, fmt.Errorf("entry %d (%s %s): undeclared variables %s",
				i, entry.Type, entry.ID, strings.Join(missing, ", ")))
		}
	}

	utils.GetLogger().Debug("Chapter checked", map[string]interface{}{
		"file":     path,
		"entries":  len(chapter.Entries),
		"problems": len(multierr.Errors(problems)),
	})

	w := output(cmd)
	if problems == nil {
		fmt.Fprintf(w, "%s: %d entries, no problems\n", path, len(chapter.Entries))
		return nil
	}
	for _, problem := range multierr.Errors(problems) {
		fmt.Fprintf(w, "%s: %v\n", path, problem)
	}
	return fmt.Errorf("%d problems found", len(multierr.Errors(problems)))
}
