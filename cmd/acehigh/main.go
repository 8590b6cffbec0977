package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version"`
	Play    PlayCmd          `cmd:"" default:"1" help:"Play against the bots"`
	Stats   StatsCmd         `cmd:"" help:"Show lifetime analytics"`
	End     EndCmd           `cmd:"" help:"End the saved game on the service"`
	Sandbox SandboxCmd       `cmd:"" help:"Run a local game service with a built-in dealer"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("acehigh"),
		kong.Description("Heads-up and short-handed Hold'em against service bots"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
