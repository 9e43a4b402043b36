package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/shipwright/cmd/shipwright/commands"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("shipwright"),
		kong.Description("Build, package and release multi-module libraries."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(&commands.Global{Logger: slog.Default()}, &cli),
	)

	if err := parser.Run(); err != nil {
		adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		adapter.HandleError(err)
	}
}
