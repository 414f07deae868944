package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/drivegate/config"
	"github.com/shashiranjanraj/drivegate/internal/kernel"
	"github.com/shashiranjanraj/drivegate/internal/server"
	khttp "github.com/shashiranjanraj/drivegate/pkg/http"
)

// drivegate serve: start the HTTP server.
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run", "start"},
	Short:   "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start()
	},
}

// drivegate route:list: print all registered routes.
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		k, err := kernel.New(cmd.Context(), kernel.FromEnv())
		if err != nil {
			return err
		}
		defer k.Close() //nolint:errcheck

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range k.Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

var (
	healthURL      string
	healthAttempts int
	healthInterval time.Duration
	healthTimeout  time.Duration
)

var errUnhealthy = errors.New("service unhealthy")

// drivegate healthcheck: poll GET /health until it answers 200.
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe GET /health of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := healthURL
		if url == "" {
			url = "http://localhost:" + config.Port() + "/health"
		}
		return probe(cmd.Context(), url, healthAttempts, healthInterval, healthTimeout)
	},
}

func init() {
	healthcheckCmd.Flags().StringVar(&healthURL, "url", "", "health endpoint (default http://localhost:$PORT/health)")
	healthcheckCmd.Flags().IntVar(&healthAttempts, "attempts", 10, "number of attempts")
	healthcheckCmd.Flags().DurationVar(&healthInterval, "interval", 3*time.Second, "wait between attempts")
	healthcheckCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "per-attempt timeout")
}

func probe(ctx context.Context, url string, attempts int, interval, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for i := 1; i <= max(attempts, 1); i++ {
		resp, err := khttp.Get(url).Timeout(timeout).WithContext(ctx).Send()
		if err == nil && resp.OK() {
			fmt.Println("healthy")
			return nil
		}
		if err == nil {
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
		fmt.Fprintf(os.Stderr, "attempt %d/%d: %v\n", i, attempts, err)

		if i < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return errUnhealthy
}
