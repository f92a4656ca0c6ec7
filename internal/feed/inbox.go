package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/valmere/tradesman/internal/logging"
	"github.com/valmere/tradesman/internal/market"
)

// Inbox watches a drop directory for JSON recommendation files. Files are
// consumed and removed once handed off.
type Inbox struct {
	dir     string
	log     *logging.Logger
	handler func(*market.Recommendation)
}

func NewInbox(dir string, log *logging.Logger, handler func(*market.Recommendation)) *Inbox {
	return &Inbox{dir: dir, log: log, handler: handler}
}

// Run watches the inbox until ctx is cancelled. Files already present at
// startup are processed first.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0755); err != nil {
		return fmt.Errorf("ensure inbox dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(in.dir); err != nil {
		return fmt.Errorf("watch %s: %w", in.dir, err)
	}

	in.scan()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				in.handleFile(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.log.Errorf("fsnotify error: %v", err)
		}
	}
}

// scan picks up files dropped while the daemon was not watching.
func (in *Inbox) scan() {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		in.log.Warnf("inbox scan failed: %v", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			in.handleFile(filepath.Join(in.dir, e.Name()))
		}
	}
}

func (in *Inbox) handleFile(path string) {
	if !strings.HasSuffix(path, ".json") {
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		// a second event for an already-consumed file lands here
		if !os.IsNotExist(err) {
			in.log.Warnf("inbox read failed file=%s: %v", path, err)
		}
		return
	}
	rec, err := market.ParseRecommendation(raw)
	if err != nil {
		// possibly caught mid-write; the completing write event retries it
		in.log.Warnf("ignoring inbox file=%s: %v", filepath.Base(path), err)
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		in.log.Warnf("inbox remove failed file=%s: %v", path, err)
	}
	in.log.Debugf("inbox accepted file=%s item=%s", filepath.Base(path), rec.ItemID)
	in.handler(rec)
}
