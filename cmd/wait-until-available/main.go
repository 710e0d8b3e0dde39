package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Usage example on the command line:
// > go run main.go --url=http://localhost:8080/health --timeout=2m
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var url string
	var timeout, interval time.Duration
	cmd := &cobra.Command{
		Use:          "wait-until-available",
		Short:        "Waits until the contacts service reports that it is healthy",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return waitUntilAvailable(ctx, cmd, url, interval)
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080/health", "the health endpoint to poll")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up after this duration")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "the time between two attempts")
	return cmd
}

func waitUntilAvailable(ctx context.Context, cmd *cobra.Command, url string, interval time.Duration) error {
	start := time.Now()
	for {
		ok, err := checkHealth(ctx, url)
		switch {
		case ok:
			cmd.Printf("%s is available\n", url)
			return nil
		case err != nil:
			cmd.Println(err)
		}
		cmd.Printf("Waiting %d seconds\n", int(time.Since(start).Seconds()))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not available: %w", url, ctx.Err())
		case <-time.After(interval):
		}
	}
}

func checkHealth(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%s answered %s", url, res.Status)
	}
	return true, nil
}
