package notify

import (
	"errors"
	"testing"

	"plotstation/types"
)

func TestNew(t *testing.T) {
	for _, kind := range []string{"", "none", "clipboard", "keystroke"} {
		if _, err := New(kind); err != nil {
			t.Errorf("New(%q): %v", kind, err)
		}
	}
	if _, err := New("sms"); err == nil {
		t.Error("expected error for unknown notifier")
	}
}

func TestSummary(t *testing.T) {
	job := types.Job{Label: "drawing_3", Status: types.JobDone, Lines: 1520}
	if got := Summary(job); got != "drawing_3:done:1520" {
		t.Errorf("Summary = %q", got)
	}
}

func TestClipboardWritesSummary(t *testing.T) {
	var got string
	c := &Clipboard{write: func(s string) error {
		got = s
		return nil
	}}
	job := types.Job{Label: "drawing_4", Status: types.JobFailed, Lines: 12}
	if err := c.Notify(job); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got != "drawing_4:failed:12" {
		t.Errorf("clipboard = %q", got)
	}
}

func TestClipboardError(t *testing.T) {
	boom := errors.New("no display")
	c := &Clipboard{write: func(string) error { return boom }}
	if err := c.Notify(types.Job{}); !errors.Is(err, boom) {
		t.Errorf("Notify error = %v, want wrapped %v", err, boom)
	}
}

func TestNoneIsSilent(t *testing.T) {
	if err := (None{}).Notify(types.Job{}); err != nil {
		t.Error(err)
	}
}
