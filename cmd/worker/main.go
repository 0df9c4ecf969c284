package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ea-integrations/process-sync/config"
	"github.com/ea-integrations/process-sync/internal/bootstrap"
)

const usage = `usage: worker <command> [args]

commands:
  run <job>             load or build the tree of a job and synchronize it
  build <job>           rebuild the tree of a job and cache it
  sync <job>            synchronize the cached tree of a job
  clear-cache <job>     drop the cached tree of a job
  diagram <diagram-id>  print the BPMN markup of a diagram
  jobs                  list the configured jobs`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer app.Close()

	args := os.Args[2:]
	switch os.Args[1] {
	case "run":
		err = RunJob(ctx, app, args)
	case "build":
		err = BuildTree(ctx, app, args)
	case "sync":
		err = SyncCached(ctx, app, args)
	case "clear-cache":
		err = ClearCache(ctx, app, args)
	case "diagram":
		err = PrintDiagram(ctx, app, args)
	case "jobs":
		err = ListJobs(app, os.Stdout)
	default:
		log.Fatalf("unknown command: %s\n%s", os.Args[1], usage)
	}
	if err != nil {
		app.Close()
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}
