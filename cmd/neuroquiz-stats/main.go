// Command neuroquiz-stats prints the acquisition funnel report.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	corecmd "github.com/m3rciful/neuroquiz/core/cmd"
	coreconfig "github.com/m3rciful/neuroquiz/core/config"
	coredatabase "github.com/m3rciful/neuroquiz/core/database"
	"github.com/m3rciful/neuroquiz/internal/app"
	"github.com/m3rciful/neuroquiz/internal/stats"
	"github.com/m3rciful/neuroquiz/internal/storage"
)

func main() {
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()
	if *noColor {
		color.NoColor = true
	}
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	path, err := corecmd.ConfigPath("CONFIG_PATH", "config/config.yaml")
	if err != nil {
		return err
	}
	// only the database section matters here
	var cfg app.Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := coredatabase.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := stats.Collect(ctx, storage.New(db))
	if err != nil {
		return err
	}
	return report.Write(os.Stdout)
}
