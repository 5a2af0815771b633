package main

import (
	"context"
	"log"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/server"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
