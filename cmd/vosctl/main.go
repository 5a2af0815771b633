package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/cli"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/server"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/server/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewText(os.Stderr, slog.LevelWarn)

	core, err := server.OpenCore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vosctl:", err)
		return 1
	}
	defer core.Close()

	app := cli.NewApp(core, logger, os.Stdin, os.Stdout)
	if err := app.Run(ctx, cli.CommandArgs(os.Args[1:])); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		fmt.Fprintln(os.Stderr, "vosctl:", err)
		return 1
	}
	return 0
}
