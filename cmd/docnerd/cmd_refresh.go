package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docnerd/internal/fetch"
	"docnerd/internal/job"
)

var (
	refreshLibrary string
	refreshVersion string
	refreshWait    bool
	refreshWatch   bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-crawl an already-indexed library version, skipping unchanged pages",
	RunE:  runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshLibrary, "library", "", "Library name (required)")
	refreshCmd.Flags().StringVar(&refreshVersion, "version", "", "Version label (required)")
	refreshCmd.Flags().BoolVar(&refreshWait, "wait", true, "Block until the job finishes")
	refreshCmd.Flags().BoolVar(&refreshWatch, "watch", false, "For file:// sources, keep running and re-refresh on local edits")
	refreshCmd.MarkFlagRequired("library")
	refreshCmd.MarkFlagRequired("version")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	v, err := db.FindBestVersion(ctx, refreshLibrary, refreshVersion)
	if err != nil {
		return fmt.Errorf("look up version: %w", err)
	}
	if v == nil {
		return fmt.Errorf("no indexed version matches %s@%s", refreshLibrary, refreshVersion)
	}

	if err := enqueueRefresh(ctx, v.ID, v.SourceURL); err != nil {
		return err
	}

	if !refreshWatch {
		return nil
	}
	if !strings.HasPrefix(v.SourceURL, "file://") {
		return fmt.Errorf("--watch only supports file:// sources, got %s", v.SourceURL)
	}
	return watchAndRefresh(ctx, v.ID, v.SourceURL)
}

// enqueueRefresh reconstructs a refresh job's frontier from the store's
// known pages plus the version's originally persisted scraper options, then
// enqueues it and optionally blocks for completion.
func enqueueRefresh(ctx context.Context, versionID int64, sourceURL string) error {
	pages, err := db.ListPages(ctx, versionID)
	if err != nil {
		return fmt.Errorf("list existing pages: %w", err)
	}

	queue := make([]job.QueueEntry, 0, len(pages)+1)
	seenRoot := false
	for _, p := range pages {
		queue = append(queue, job.QueueEntry{URL: p.URL, Depth: p.Depth, PageID: p.ID, ETag: p.ETag})
		if p.URL == sourceURL {
			seenRoot = true
		}
	}
	if !seenRoot {
		queue = append([]job.QueueEntry{{URL: sourceURL, Depth: 0}}, queue...)
	}

	optionsJSON, err := db.GetScraperOptions(ctx, versionID)
	if err != nil {
		return fmt.Errorf("load original scraper options: %w", err)
	}

	opts, err := job.DecodeScraperOptions(optionsJSON)
	if err != nil {
		return fmt.Errorf("decode stored scraper options: %w", err)
	}
	opts.URL = sourceURL
	opts.Library = refreshLibrary
	opts.Version = refreshVersion
	opts.InitialQueue = queue

	id, err := manager.EnqueueRefreshJob(ctx, versionID, opts)
	if err != nil {
		return fmt.Errorf("enqueue refresh job: %w", err)
	}
	fmt.Printf("job %s queued to refresh %s@%s (%d known pages)\n", id, refreshLibrary, refreshVersion, len(pages))

	if !refreshWait {
		return nil
	}
	if err := waitWithSpinner(ctx, id); err != nil {
		return fmt.Errorf("job %s: %w", id, err)
	}
	fmt.Printf("job %s completed\n", id)
	return nil
}

// watchAndRefresh re-runs enqueueRefresh whenever the source tree changes,
// debounced by fetch.TreeWatcher, until ctx is cancelled.
func watchAndRefresh(ctx context.Context, versionID int64, sourceURL string) error {
	root := strings.TrimPrefix(sourceURL, "file://")
	watcher, err := fetch.NewTreeWatcher(root)
	if err != nil {
		return fmt.Errorf("start tree watcher: %w", err)
	}
	defer watcher.Stop()

	changes, err := watcher.Start(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	fmt.Printf("watching %s for changes (ctrl-c to stop)\n", root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-changes:
			if !ok {
				return nil
			}
			fmt.Printf("%d file(s) changed, re-refreshing\n", len(batch))
			if err := enqueueRefresh(ctx, versionID, sourceURL); err != nil {
				fmt.Printf("refresh failed: %v\n", err)
			}
		}
	}
}
