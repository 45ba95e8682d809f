// Command lambda is the function target for the managed scheduler: one-shot
// execution triggers and the daily detection rule both invoke it.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/heartmarshall/zengin-sync/internal/app"
	"github.com/heartmarshall/zengin-sync/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	c, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("build components: %v", err)
	}
	defer c.Close()

	lambda.Start(c.Dispatcher.HandleLambda)
}
