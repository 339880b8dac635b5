package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/ubike/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/ubike/config.toml)")
	prefsPath := flag.String("prefs", "", "preferences file path (optional)")
	headless := flag.Bool("headless", false, "serve the JSON API instead of the terminal UI")
	listen := flag.String("listen", "", "API listen address in headless mode (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Headless:   *headless,
		ListenAddr: *listen,
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "ubike: %v\n", err)
		return 1
	}
	return 0
}
