package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Run the chain and HTTP API"`
	Keygen  KeygenCmd        `cmd:"" help:"Generate a signing identity"`
	Commit  CommitCmd        `cmd:"" help:"Compute the commitment for a card sequence"`
	Demo    DemoCmd          `cmd:"" help:"Play a game in-process and render it"`
	Audit   AuditCmd         `cmd:"" help:"Verify a finished game against its revealed sequence"`
}

func main() {
	// FAIRJACK_* defaults may come from a local .env file.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("fairjack"),
		kong.Description("Committed-deck blackjack engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
