// Package notify tells the operator that a plot has finished by handing a
// one-line summary to the desktop: on the clipboard, or typed into whatever
// window has focus (a spreadsheet logging the installation's output).
package notify

import (
	"fmt"
	"runtime"
	"time"

	"plotstation/types"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

type Notifier interface {
	Notify(job types.Job) error
}

// New returns the notifier named by kind: "none", "clipboard" or "keystroke".
func New(kind string) (Notifier, error) {
	switch kind {
	case "", "none":
		return None{}, nil
	case "clipboard":
		return &Clipboard{}, nil
	case "keystroke":
		return &Keystroke{}, nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", kind)
	}
}

// Summary formats a finished job as "label:status:lines".
func Summary(job types.Job) string {
	return fmt.Sprintf("%s:%s:%d", job.Label, job.Status, job.Lines)
}

type None struct{}

func (None) Notify(types.Job) error { return nil }

// Clipboard copies the job summary to the system clipboard.
type Clipboard struct {
	write func(string) error
}

func (c *Clipboard) Notify(job types.Job) error {
	write := c.write
	if write == nil {
		write = clipboard.WriteAll
	}
	if err := write(Summary(job)); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}

// Keystroke pastes the summary into the focused window and presses Enter.
type Keystroke struct {
	clip Clipboard
}

func (k *Keystroke) Notify(job types.Job) error {
	if err := k.clip.Notify(job); err != nil {
		return err
	}

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("keyboard: %w", err)
	}
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)

	// the target window needs a moment after the clipboard changes
	time.Sleep(200 * time.Millisecond)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("paste: %w", err)
	}

	kbEnter, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("keyboard: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	kbEnter.SetKeys(keybd_event.VK_ENTER)
	if err := kbEnter.Launching(); err != nil {
		return fmt.Errorf("enter: %w", err)
	}
	return nil
}
