package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	chainspect "github.com/chainspect/chainspect/core"
	"github.com/chainspect/chainspect/core/manifest"
	"github.com/fsnotify/fsnotify"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var (
		debounce time.Duration
		noOSV    bool
	)
	fs.DurationVar(&debounce, "debounce", 500*time.Millisecond, "debounce interval for lockfile changes")
	fs.BoolVar(&noOSV, "no-osv", false, "skip OSV.dev vulnerability lookups")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	target := "."
	if fs.NArg() > 0 {
		target = fs.Arg(0)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating watcher: %v\n", err)
		return 2
	}
	defer watcher.Close()

	// Recursively add directories.
	if err := addDirsRecursive(watcher, target); err != nil {
		fmt.Fprintf(os.Stderr, "error: watching directories: %v\n", err)
		return 2
	}

	// Signal handling.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Initial audit.
	fmt.Printf("watch: auditing %s (debounce: %s)\n", target, debounce)
	printAuditResults(target, noOSV)

	// Debounced event loop. Only changes to recognised lockfiles trigger a
	// re-audit; edits to source files are noise at this layer.
	var mu sync.Mutex
	var timer *time.Timer

	resetTimer := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			fmt.Print("\033[2J\033[H") // clear terminal
			fmt.Printf("watch: re-auditing %s\n", target)
			printAuditResults(target, noOSV)
		})
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return 0
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				// Add new directories if created.
				if event.Has(fsnotify.Create) {
					info, err := os.Stat(event.Name)
					if err == nil && info.IsDir() {
						_ = addDirsRecursive(watcher, event.Name)
						resetTimer()
						continue
					}
				}
				if manifest.Supported(event.Name) {
					resetTimer()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return 0
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		case <-sigCh:
			fmt.Println("\nwatch: stopped")
			return 0
		}
	}
}

func printAuditResults(target string, noOSV bool) {
	result, err := chainspect.RunAuditWithOptions(context.Background(), target, chainspect.AuditOptions{
		DisableOSV: noOSV,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: audit failed: %v\n", err)
		return
	}

	ff := result.Findings.Findings()
	counts := result.Findings.CountBySeverity()

	fmt.Printf("[results] %d finding(s) across %d package(s)", len(ff), result.Inventory.Len())
	if len(counts) > 0 {
		parts := make([]string, 0, len(counts))
		for sev, count := range counts {
			parts = append(parts, fmt.Sprintf("%d %s", count, string(sev)))
		}
		fmt.Printf(" (%s)", strings.Join(parts, ", "))
	}
	fmt.Println()

	for _, f := range ff {
		fmt.Printf("  %-8s %-8s %s\n", f.Severity, f.RuleID, f.Message)
	}
}

func addDirsRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if base == ".git" || base == "node_modules" || base == "vendor" {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
