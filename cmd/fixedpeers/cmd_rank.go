package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	flags "github.com/jessevdk/go-flags"
	"github.com/jedib0t/go-pretty/v6/table"
)

const defaultRankCount = 20

type rankCommand struct {
	Count int `long:"count" description:"The number of peers to list"`

	app *app
}

func newRankCommand(a *app) *rankCommand {
	return &rankCommand{
		Count: defaultRankCount,
		app:   a,
	}
}

func (x *rankCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"rank",
		"List the best eligible peers",
		"List the masternodes that would be added to an empty fixed "+
			"peer list, in the order they would be added",
		x,
	)
	return err
}

func (x *rankCommand) Execute(_ []string) error {
	if x.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", x.Count)
	}

	ctx, updater, err := x.app.setup()
	if err != nil {
		return err
	}

	peers, err := updater.Rank(ctx, x.Count)
	if err != nil {
		return err
	}

	now := time.Now()
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{
		"#", "Address", "Country", "Protocol", "Uptime",
	})
	for i, peer := range peers {
		uptime := humanize.RelTime(
			now.Add(-peer.Uptime()), now, "", "",
		)
		t.AppendRow(table.Row{
			i + 1, peer.IP, peer.CountryCode, peer.Protocol,
			strings.TrimSpace(uptime),
		})
	}
	t.Render()

	if len(peers) < x.Count {
		fmt.Printf("Only %s eligible peers available\n",
			humanize.Comma(int64(len(peers))))
	}

	return nil
}
