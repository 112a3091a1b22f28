package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/library"
	"github.com/pevans/booksource/rule"
)

// watcher converts rule files from one directory into a library.
type watcher struct {
	dispatcher *converter.Dispatcher
	target     rule.Format
	out        *library.Library
}

// convertFile converts every document in path and stores the results,
// returning how many succeeded.
func (w *watcher) convertFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	results, err := w.dispatcher.ConvertJSON(data, w.target)
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	converted := 0
	for _, r := range results {
		if !r.Success {
			log.Printf("convert failed: file=%q %s", path, r.Error)
			continue
		}
		if _, err := w.out.Add(r.Rule); err != nil {
			return converted, err
		}
		converted++
	}
	return converted, nil
}

// convertAll converts every rule file in dir.
func (w *watcher) convertAll(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("read dir failed: dir=%q err=%v", dir, err)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || !isRuleFile(path) {
			continue
		}
		w.convertPath(path)
	}
}

func (w *watcher) convertPath(path string) {
	n, err := w.convertFile(path)
	if err != nil {
		log.Printf("convert failed: %v", err)
		return
	}
	log.Printf("converted: file=%q rules=%d target=%s", path, n, w.target)
}

// isRuleFile reports whether path looks like a rule document.
func isRuleFile(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), ".json")
}

// shouldConvert filters watcher events down to writes of rule files.
func shouldConvert(evt fsnotify.Event) bool {
	if evt.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	return isRuleFile(evt.Name)
}

// run converts changed files until ctx is done. Events for the same file
// are coalesced until debounce passes without further changes.
func (w *watcher) run(ctx context.Context, fsw *fsnotify.Watcher, debounce time.Duration) {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	pending := map[string]bool{}

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(debounce)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-timerC:
			timerC = nil
			for path := range pending {
				w.convertPath(path)
			}
			pending = map[string]bool{}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		case evt, ok := <-fsw.Events:
			if !ok {
				return
			}
			if shouldConvert(evt) {
				pending[evt.Name] = true
				resetTimer()
			}
		}
	}
}

func handleWatch(s settings, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	to := fs.String("to", string(s.Target), "Target format")
	out := fs.String("out", s.LibraryDir, "Output library directory")
	debounce := fs.Duration("debounce", 300*time.Millisecond, "Quiet period before converting a changed file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: directory to watch is required\n")
		fmt.Fprintf(os.Stderr, "Usage: booksource watch [flags] <dir>\n")
		os.Exit(1)
	}
	dir := fs.Arg(0)

	lib, err := library.New(*out)
	if err != nil {
		log.Fatalf("Failed to open output library: %v", err)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		if outAbs, err := filepath.Abs(lib.Dir()); err == nil && abs == outAbs {
			log.Fatalf("Output directory must differ from the watched directory")
		}
	}

	w := &watcher{
		dispatcher: converter.NewDispatcher(s.Options),
		target:     mustFormat(*to),
		out:        lib,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("Failed to create watcher: %v", err)
	}
	defer fsw.Close()
	if err := fsw.Add(dir); err != nil {
		log.Fatalf("Failed to watch %s: %v", dir, err)
	}

	w.convertAll(dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("watching: dir=%q out=%q target=%s debounce=%s", dir, lib.Dir(), w.target, *debounce)
	w.run(ctx, fsw, *debounce)
	log.Printf("watch stopped")
}
