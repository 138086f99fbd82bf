package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/darianmavgo/mince/config"
	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/dataimport"
	"github.com/darianmavgo/mince/logging"
	"github.com/darianmavgo/mince/output"
	"github.com/darianmavgo/mince/runner"

	"github.com/joho/godotenv"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  mince [--log-level <level>] [--stall <duration>] <run.hcl>   # Import data and run reports")
	fmt.Println("  mince --init <run.hcl>                                        # Write an example run file")
	fmt.Println("  mince --list                                                  # List readers, outputs and engines")
}

func main() {
	// Values already in the environment win over .env
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	args := os.Args[1:]
	var level, stall string
	var cleanArgs []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--log-level", "--stall":
			if i+1 >= len(args) {
				usage()
				os.Exit(1)
			}
			if args[i] == "--log-level" {
				level = args[i+1]
			} else {
				stall = args[i+1]
			}
			i++
		default:
			cleanArgs = append(cleanArgs, args[i])
		}
	}

	if len(cleanArgs) < 1 {
		usage()
		os.Exit(1)
	}

	switch cleanArgs[0] {
	case "--init":
		if len(cleanArgs) < 2 {
			usage()
			os.Exit(1)
		}
		if err := config.Export(cleanArgs[1], config.Example()); err != nil {
			fmt.Printf("Error writing run file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote example run file to %s\n", cleanArgs[1])
		return
	case "--list":
		fmt.Println("readers:", strings.Join(dataimport.Readers(), " "))
		fmt.Println("outputs:", strings.Join(output.Handlers(), " "))
		fmt.Println("engines:", strings.Join(database.Dialects(), " "))
		return
	}

	cfg, err := config.Load(cleanArgs[0])
	if err != nil {
		fmt.Printf("Error loading run file: %v\n", err)
		os.Exit(1)
	}
	if level == "" {
		level = cfg.LogLevel
	}
	logger := logging.Setup(level, cfg.LogFormat)

	var opts []runner.Option
	opts = append(opts, runner.WithLogger(logger))
	if stall != "" {
		d, err := time.ParseDuration(stall)
		if err != nil {
			fmt.Printf("Invalid --stall duration: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, runner.WithStallTimeout(d))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := runner.Run(ctx, cfg, opts...)
	if err != nil {
		if sum != nil {
			logger = logger.With("run_id", sum.RunID)
		}
		logger.Error("run failed", "error", err)
		stop()
		os.Exit(1)
	}

	var rows int64
	for _, n := range sum.Imported {
		rows += n
	}
	fmt.Printf("Run %s (%s): imported %d rows, ran %d queries\n", sum.RunID, sum.Title, rows, len(sum.Queries))
}
