package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/jedib0t/go-pretty/v6/table"
)

type validateCommand struct {
	Strict bool `long:"strict" description:"Exit with an error if any peer in the list failed validation"`

	app *app
}

func newValidateCommand(a *app) *validateCommand {
	return &validateCommand{
		app: a,
	}
}

func (x *validateCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"validate",
		"Validate the fixed peer list",
		"Check that every peer in the fixed peer list is still "+
			"reachable without changing the list",
		x,
	)
	return err
}

func (x *validateCommand) Execute(_ []string) error {
	ctx, updater, err := x.app.setup()
	if err != nil {
		return err
	}

	result, err := updater.Validate(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Address", "Verdict", "Source"})
	for _, verdict := range result.Verdicts {
		switch {
		case verdict.Alive && verdict.Cached:
			t.AppendRow(table.Row{verdict.Addr, "OK", "directory"})

		case verdict.Alive:
			t.AppendRow(table.Row{verdict.Addr, "OK", "probe"})

		default:
			t.AppendRow(table.Row{
				verdict.Addr, "Failed", verdict.Err.Error(),
			})
		}
	}
	t.Render()

	numFailed := result.NumFailed()
	fmt.Printf("Passed: %d Failed: %d\n", len(result.Verdicts)-numFailed,
		numFailed)

	if x.Strict && numFailed > 0 {
		return fmt.Errorf("%d peers failed validation", numFailed)
	}

	return nil
}
