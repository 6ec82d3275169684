package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/geoknoesis/semlift-go/errors"
)

const watchDebounce = 300 * time.Millisecond

func watchedFiles() []string {
	files := []string{liftFlags.plan}
	if isFileInput(liftFlags.inputType) {
		files = append(files, liftFlags.input)
	}
	return append(files, liftFlags.idRules...)
}

// watchLift lifts once, then again after every write to one of files,
// until interrupted.
func watchLift(ctx context.Context, stdout io.Writer, files []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directories and filter.
	wanted := map[string]bool{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return errors.Wrapf(err, "resolve %s", f)
		}
		wanted[abs] = true
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return errors.Wrapf(err, "watch %s", f)
		}
	}

	relift := func() {
		if err := liftOnce(ctx, os.Stdin, stdout); err != nil {
			app.Logger.Errorw("lift failed", "error", err)
			return
		}
		app.Logger.Infow("lift written", "out", liftFlags.out)
	}
	relift()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if abs, _ := filepath.Abs(event.Name); !wanted[abs] {
				continue
			}
			app.Logger.Debugw("watched file changed", "file", event.Name, "op", event.Op.String())
			debounce = time.After(watchDebounce)
		case <-debounce:
			debounce = nil
			relift()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			app.Logger.Warnw("file watcher error", "error", err)
		}
	}
}
