package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeConverter struct {
	dir   string
	err   error
	calls int
}

func (c *fakeConverter) Convert(_ context.Context, input string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", &ConversionError{Input: input, Err: c.err}
	}
	out := filepath.Join(c.dir, filepath.Base(input)+".gcode")
	return out, os.WriteFile(out, []byte("G21\n"), 0644)
}

func touch(t *testing.T, dir, name string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("G21\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWatcherSubmitsOldestFirst(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, dir, "drawing_2.gcode", now)
	first := touch(t, dir, "drawing_1.nc", now.Add(-time.Minute))
	touch(t, dir, "notes.md", now.Add(-time.Hour))

	m := NewMailbox()
	w := NewWatcher(dir, time.Millisecond, m, nil)

	if got := w.Scan(context.Background()); got != first {
		t.Fatalf("Scan submitted %q, want %q", got, first)
	}
	if _, label := m.Status(); label != "drawing_1" {
		t.Errorf("mailbox holds %q", label)
	}
}

func TestWatcherWaitsWhileBusy(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "drawing_5.gcode", time.Now())

	m := NewMailbox()
	m.SubmitFile("elsewhere.gcode")
	w := NewWatcher(dir, time.Millisecond, m, nil)

	if got := w.Scan(context.Background()); got != "" {
		t.Fatalf("submitted %q while busy", got)
	}
	if _, label := m.Status(); label != "elsewhere" {
		t.Errorf("busy slot overwritten with %q", label)
	}

	m.TakeAndClear()
	if got := w.Scan(context.Background()); got != path {
		t.Errorf("pending file not picked up once idle: %q", got)
	}
}

func TestWatcherDoesNotResubmit(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "drawing_6.gcode", time.Now())

	m := NewMailbox()
	w := NewWatcher(dir, time.Millisecond, m, nil)

	if w.Scan(context.Background()) == "" {
		t.Fatal("nothing submitted")
	}
	m.TakeAndClear()
	if got := w.Scan(context.Background()); got != "" {
		t.Errorf("resubmitted %q", got)
	}
}

func TestWatcherConvertsDrawings(t *testing.T) {
	dir := t.TempDir()
	svg := touch(t, dir, "drawing_7.svg", time.Now().Add(-time.Minute))
	conv := &fakeConverter{dir: dir}

	m := NewMailbox()
	w := NewWatcher(dir, time.Millisecond, m, conv)

	got := w.Scan(context.Background())
	if got != svg+".gcode" {
		t.Fatalf("submitted %q", got)
	}
	m.TakeAndClear()

	// the converter's output lands in the watched directory and must not
	// come round a second time
	if again := w.Scan(context.Background()); again != "" {
		t.Errorf("resubmitted %q", again)
	}
	if conv.calls != 1 {
		t.Errorf("converter called %d times", conv.calls)
	}
}

func TestWatcherSkipsFailedConversion(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, dir, "broken.svg", now.Add(-time.Minute))
	next := touch(t, dir, "drawing_8.gcode", now)

	m := NewMailbox()
	w := NewWatcher(dir, time.Millisecond, m, &fakeConverter{dir: dir, err: errors.New("bad path data")})

	if got := w.Scan(context.Background()); got != next {
		t.Fatalf("submitted %q, want %q", got, next)
	}
}

func TestWatcherRun(t *testing.T) {
	dir := t.TempDir()
	m := NewMailbox()
	w := NewWatcher(dir, 5*time.Millisecond, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	touch(t, dir, "drawing_9.gcode", time.Now())
	waitUntil(t, "watcher to submit", time.Second, func() bool {
		busy, _ := m.Status()
		return busy
	})
}
