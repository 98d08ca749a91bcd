package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	nestbox "github.com/everydev1618/nestbox"
	"github.com/everydev1618/nestbox/container"
	"github.com/everydev1618/nestbox/hub"
)

// hubCmd runs the helper hub until interrupted.
func hubCmd(args []string) {
	fs := flag.NewFlagSet("hub", flag.ExitOnError)
	name := fs.String("name", "default", "Session name (socket and container prefix)")
	image := fs.String("image", "", "Container image for helpers")
	helpersDir := fs.String("helpers-dir", "", "Host path to the helpers/ directory")
	entrypoint := fs.String("entrypoint", "", "Agent command run inside helpers")
	logPath := fs.String("log", "", "Audit log path (default ~/.nestbox/logs/<name>.jsonl)")

	fs.Usage = func() {
		fmt.Println(`Usage: nestbox hub [options]

Run the helper hub: a Unix socket broker that spawns helper containers
and routes messages between them.

Options:`)
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := nestbox.LoadConfig(nestbox.ConfigPath())
	if err != nil {
		fatal(err)
	}
	if cfg.HelpersDisabled {
		fatal(fmt.Errorf("helpers are disabled in %s", nestbox.ConfigPath()))
	}
	if *image == "" {
		*image = cfg.Image
	}
	if *image == "" {
		fatal(fmt.Errorf("no container image configured (use --image or nestbox.yaml)"))
	}
	if *entrypoint == "" {
		*entrypoint = cfg.Entrypoint
	}
	prefix := cfg.NamePrefix
	if prefix == "" {
		prefix = "nestbox-" + *name
	}
	if *helpersDir == "" {
		*helpersDir = filepath.Join(nestbox.Home(), "helpers")
	}
	if err := os.MkdirAll(*helpersDir, 0o755); err != nil {
		fatal(err)
	}

	socketPath := nestbox.SocketPath(*name)
	if err := nestbox.ValidateSocketPath(socketPath); err != nil {
		fatal(err)
	}

	if *logPath == "" {
		*logPath = filepath.Join(nestbox.LogDir(), *name+".jsonl")
	}
	log, err := hub.NewMessageLog(*logPath)
	if err != nil {
		fatal(err)
	}

	runtime, err := container.NewDockerRuntime()
	if err != nil {
		fatal(err)
	}
	defer runtime.Close()

	h := hub.New()
	err = h.Start(socketPath, hub.HelperContext{
		Runtime:    runtime,
		Image:      *image,
		NamePrefix: prefix,
		HelpersDir: *helpersDir,
		SocketPath: socketPath,
		Env:        cfg.Env,
		Entrypoint: *entrypoint,
	}, log)
	if err != nil {
		fatal(err)
	}

	slog.Info("hub running", "socket", socketPath, "image", *image, "prefix", prefix)
	fmt.Printf("Hub listening on %s\n", socketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	h.Stop()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
