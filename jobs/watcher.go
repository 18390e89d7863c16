package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"plotstation/logging"
)

var commandExts = map[string]bool{
	".gcode": true,
	".nc":    true,
	".txt":   true,
}

// Watcher submits drawings exported into a directory. A file is submitted at
// most once; files that show up while the station is busy wait for the next
// tick on which the mailbox is idle.
type Watcher struct {
	Dir       string
	Interval  time.Duration
	Mailbox   *Mailbox
	Converter Converter

	seen map[string]bool
	// converted maps an exported drawing to its command file
	converted map[string]string
}

func NewWatcher(dir string, interval time.Duration, mailbox *Mailbox, converter Converter) *Watcher {
	return &Watcher{
		Dir:       dir,
		Interval:  interval,
		Mailbox:   mailbox,
		Converter: converter,
		seen:      make(map[string]bool),
		converted: make(map[string]string),
	}
}

func (w *Watcher) Run(ctx context.Context) {
	logging.Info("system", "watching %s every %v", w.Dir, w.Interval)
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		w.Scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan looks at the directory once and submits the oldest unsubmitted file
// if the mailbox is idle. It returns the submitted path, or "".
func (w *Watcher) Scan(ctx context.Context) string {
	if busy, _ := w.Mailbox.Status(); busy {
		return ""
	}

	for _, path := range w.pending() {
		cmdPath := path
		if strings.EqualFold(filepath.Ext(path), ".svg") {
			var ok bool
			if cmdPath, ok = w.convert(ctx, path); !ok {
				continue
			}
		}

		job, ok := w.Mailbox.SubmitFile(cmdPath)
		if !ok {
			// someone else filled the slot since the status check
			return ""
		}
		w.seen[path] = true
		logging.BroadcastLog("Saved for printing! Number: "+job.Label, "system")
		return cmdPath
	}
	return ""
}

func (w *Watcher) convert(ctx context.Context, path string) (string, bool) {
	if out, ok := w.converted[path]; ok {
		return out, true
	}
	if w.Converter == nil {
		logging.Warn("system", "skipping %s: no converter configured", filepath.Base(path))
		w.seen[path] = true
		return "", false
	}
	out, err := w.Converter.Convert(ctx, path)
	if err != nil {
		logging.Error("system", "%v", err)
		w.seen[path] = true
		return "", false
	}
	w.converted[path] = out
	w.seen[out] = true
	return out, true
}

// pending lists unsubmitted files, oldest first.
func (w *Watcher) pending() []string {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		logging.Warn("system", "read %s: %v", w.Dir, err)
		return nil
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".svg" && !commandExts[ext] {
			continue
		}
		path := filepath.Join(w.Dir, e.Name())
		if w.seen[path] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: path, mod: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].path < files[j].path
		}
		return files[i].mod.Before(files[j].mod)
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths
}
