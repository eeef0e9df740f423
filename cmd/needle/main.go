package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"needle/pkg/config"
	"needle/pkg/orientation"
	"needle/pkg/tracking"
	"needle/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing the wire frames")
	configPath := flag.String("config", "needle.yaml", "YAML configuration file (defaults are used if it does not exist)")
	method := flag.String("method", "", "Orientation estimator: covariance or gaussian")
	workers := flag.Int("workers", 0, "Number of frames processed in parallel (default: all cores)")
	output := flag.String("output", "", "CSV file for the angle series")
	plotFile := flag.String("plot", "", "Image file for the angle plot (.png, .svg or .pdf)")
	rectify := flag.Bool("rectify", false, "Unwrap angles that cross the 0/180 boundary")
	verbose := flag.Bool("verbose", false, "Log every frame")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags given on the command line override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "method":
			cfg.Estimator.Method = *method
		case "workers":
			cfg.Batch.Workers = *workers
		case "output":
			cfg.Output.SeriesFile = *output
		case "plot":
			cfg.Output.PlotFile = *plotFile
		case "rectify":
			cfg.Batch.Rectify = *rectify
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	estimator, err := orientation.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create estimator: %v", err)
	}

	opts, err := tracking.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid batch options: %v", err)
	}
	if !cfg.Output.Verbose {
		opts.Progress = func(completed, total int, _ string) {
			fmt.Printf("\rProcessing frames: %.1f%% complete", float64(completed)/float64(total)*100)
		}
	}

	source, err := tracking.NewDirSource(*inputDir)
	if err != nil {
		log.Fatalf("Failed to open frames: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("WIRE ORIENTATION TRACKING")
	fmt.Println("================================")
	fmt.Printf("Frames: %d from %s\n", source.Len(), *inputDir)
	fmt.Printf("Estimator: %s\n", cfg.Estimator.Method)
	fmt.Printf("Workers: %d, failure policy: %s\n", cfg.Batch.Workers, opts.Policy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := tracking.NewRunner(estimator, opts)
	startTime := time.Now()
	series, runErr := runner.Run(ctx, source)
	if opts.Progress != nil {
		fmt.Println() // New line after progress
	}
	processingTime := time.Since(startTime)

	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		if fe, ok := tracking.IsFrameError(runErr); ok {
			log.Printf("Aborted at frame %d (%s)", fe.Frame, source.Files()[fe.Frame-1])
		}
		stop()
		log.Fatalf("Tracking failed: %v", runErr)
	}
	if interrupted {
		fmt.Println("Interrupted; writing the frames finished so far")
	}

	fmt.Printf("\nProcessed %d of %d frames in %.2f seconds\n", series.Len(), source.Len(), processingTime.Seconds())

	frames := series.Frames()
	angles := series.Angles()
	for i := range frames {
		fmt.Printf("%6d  %9.3f°\n", frames[i], angles[i])
	}

	if failures := runner.Failures(); len(failures) > 0 {
		fmt.Printf("\nSkipped %d frames:\n", len(failures))
		for _, fe := range failures {
			fmt.Printf("- %s: %v\n", source.Files()[fe.Frame-1], fe.Err)
		}
	}

	if cfg.Output.SeriesFile != "" {
		if err := tracking.SaveCSV(cfg.Output.SeriesFile, series, runner.Results()); err != nil {
			log.Fatalf("Failed to save angle series: %v", err)
		}
		fmt.Printf("Angle series saved to: %s\n", cfg.Output.SeriesFile)
	}

	if cfg.Output.PlotFile != "" && series.Len() > 0 {
		if err := visualization.PlotSeries(series, "Wire orientation", cfg.Output.PlotFile); err != nil {
			log.Printf("Warning: Failed to plot angle series: %v", err)
		} else {
			fmt.Printf("Angle plot saved to: %s\n", cfg.Output.PlotFile)
		}
	}

	if cfg.Output.SaveIntermediaryResults {
		fmt.Printf("Processed regions saved to: %s\n", cfg.Output.IntermediaryDir)
	}
	if cfg.Output.AxesDir != "" {
		fmt.Printf("Axes overlays saved to: %s\n", cfg.Output.AxesDir)
	}

	if interrupted {
		stop()
		os.Exit(130)
	}
}
