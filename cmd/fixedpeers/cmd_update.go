package main

import (
	"fmt"

	flags "github.com/jessevdk/go-flags"
)

type updateCommand struct {
	app *app
}

func newUpdateCommand(a *app) *updateCommand {
	return &updateCommand{
		app: a,
	}
}

func (x *updateCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"update",
		"Update the fixed peer list",
		"Validate the peers in the fixed peer list, top the list up "+
			"with the longest running masternodes spread across as "+
			"many countries as possible and atomically replace the "+
			"list file",
		x,
	)
	return err
}

func (x *updateCommand) Execute(_ []string) error {
	ctx, updater, err := x.app.setup()
	if err != nil {
		return err
	}

	summary, err := updater.Run(ctx)
	if err != nil {
		return err
	}

	verb := "Wrote"
	if !summary.Written {
		verb = "Would write"
	}
	fmt.Printf("%s %d peers: %d kept, %d dropped, %d added\n", verb,
		len(summary.Peers), len(summary.Validated),
		len(summary.Previous)-len(summary.Validated),
		len(summary.Selected))

	return nil
}
