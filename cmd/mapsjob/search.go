package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"mapsjob/internal/config"
	"mapsjob/internal/core/domain"
	"mapsjob/internal/service"
)

type searchOptions struct {
	keyword  string
	email    string
	radius   string
	export   string
	noExport bool
}

func (o *searchOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.keyword, "keyword", "k", "", "what to search for, e.g. Restaurants")
	flags.StringVarP(&o.email, "email", "e", "", "contact email sent with the job")
	flags.StringVarP(&o.radius, "radius", "r", "", "search radius in km")
	flags.StringVar(&o.export, "export", "", "export strategy: server, csv or xlsx (overrides config)")
	flags.BoolVar(&o.noExport, "no-export", false, "do not write a result file when the job completes")
}

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Args:  cobra.NoArgs,
		Short: "Submit a search job and follow it to completion",
	}
	cmd.AddCommand(newSearchFileCmd(a), newSearchLocationCmd(a))
	return cmd
}

func newSearchFileCmd(a *app) *cobra.Command {
	opts := &searchOptions{}
	var file, location string

	cmd := &cobra.Command{
		Use:   "file",
		Args:  cobra.NoArgs,
		Short: "Search around every postal code listed in a dataset file",
		RunE: func(cmd *cobra.Command, args []string) error {
			form := service.Form{
				Mode:     domain.ModeFileBased,
				Keyword:  opts.keyword,
				Email:    opts.email,
				Location: location,
				Radius:   opts.radius,
			}
			if file != "" {
				content, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read dataset: %w", err)
				}
				form.Dataset = &domain.Dataset{Filename: filepath.Base(file), Content: content}
			}
			return a.search(cmd.Context(), form, service.ResolvedCities{}, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV or Excel file with a postal code column")
	cmd.Flags().StringVarP(&location, "location", "l", "", "optional location hint")
	return cmd
}

func newSearchLocationCmd(a *app) *cobra.Command {
	opts := &searchOptions{}
	var country, city string

	cmd := &cobra.Command{
		Use:   "location",
		Args:  cobra.NoArgs,
		Short: "Search around a city",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resolved service.ResolvedCities
			if country != "" {
				var err error
				resolved, err = a.catalog.Resolve(cmd.Context(), country)
				if err != nil && !errors.Is(err, domain.ErrUnsupported) {
					return fmt.Errorf("failed to load cities for %s: %w", country, err)
				}
				if errors.Is(err, domain.ErrUnsupported) {
					// No directory on this protocol: accept the city as typed.
					resolved = service.ResolvedCities{Country: country, Cities: []string{city}}
				}
			}
			form := service.Form{
				Mode:    domain.ModeLocationBased,
				Keyword: opts.keyword,
				Email:   opts.email,
				Country: country,
				City:    city,
				Radius:  opts.radius,
			}
			return a.search(cmd.Context(), form, resolved, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&country, "country", "", "country as listed by the countries command")
	cmd.Flags().StringVar(&city, "city", "", "city within the country")
	return cmd
}

func (a *app) search(parent context.Context, form service.Form, resolved service.ResolvedCities, opts *searchOptions) error {
	sub, err := service.NewRequestBuilder().Build(form, resolved)
	if err != nil {
		return err
	}

	strategy := a.cfg.Export.Strategy
	if opts.export != "" {
		strategy = config.ExportStrategy(opts.export)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			a.logger.Warn("received interrupt signal, cancelling job")
			cancel()
		case <-ctx.Done():
		}
	}()

	updates, unsubscribe := a.controller.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printProgress(updates)
	}()

	snap, runErr := a.controller.Run(ctx, sub)
	unsubscribe()
	<-printed

	if snap.HasJob() {
		printSummary(snap)
	}
	export, err := runOutcome(snap, runErr, opts.noExport)
	if !export {
		return err
	}

	path, err := a.exporter.Export(context.Background(), snap, strategy)
	if err != nil {
		if errors.Is(err, domain.ErrNoResults) {
			fmt.Println("No results to export.")
			return nil
		}
		return err
	}
	fmt.Printf("Results:      %s\n", path)
	return nil
}

// runOutcome decides whether a finished run should be exported, or which error the command reports.
func runOutcome(snap domain.Snapshot, runErr error, noExport bool) (bool, error) {
	if !snap.HasJob() {
		// Nothing was created, including when an interrupt aborted the submission.
		return false, runErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return false, runErr
	}
	switch {
	case snap.Status == domain.StatusFailed:
		return false, snap.Err
	case snap.Status == domain.StatusCancelled:
		fmt.Println("Job cancelled.")
		return false, nil
	case noExport:
		return false, nil
	}
	return true, nil
}

func printProgress(updates <-chan domain.Snapshot) {
	last := -1.0
	for snap := range updates {
		if snap.Phase != domain.PhasePolling || snap.Progress == last {
			continue
		}
		last = snap.Progress
		fmt.Printf("\r[%s] %5.1f%%  %d records", snap.JobID, snap.Progress, len(snap.Records))
	}
	if last >= 0 {
		fmt.Println()
	}
}

func printSummary(snap domain.Snapshot) {
	fmt.Println("\n=== Job Summary ===")
	fmt.Printf("Job ID:       %s\n", snap.JobID)
	fmt.Printf("Mode:         %s\n", snap.Mode)
	fmt.Printf("Status:       %s\n", snap.Status)
	fmt.Printf("Progress:     %.1f%%\n", snap.Progress)
	fmt.Printf("Records:      %d\n", len(snap.Records))
	if !snap.FinishedAt.IsZero() {
		fmt.Printf("Finished At:  %s\n", snap.FinishedAt.Format("2006-01-02 15:04:05 UTC"))
	}
	if snap.Err != nil {
		fmt.Printf("Error:        %v\n", snap.Err)
	}
}
