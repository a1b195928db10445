package main

import (
	"context"
	"log"
	"os"

	"github.com/absmach/flround/cli"
	"github.com/joho/godotenv"
)

const pathEnv = ".env"

func main() {
	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg, err := cli.LoadWorkerConfig()
	if err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cli.StartWorker(ctx, cancel, cfg); err != nil {
		log.Fatalf("worker exited with error: %s", err.Error())
	}
}
