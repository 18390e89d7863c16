package jobs

import (
	"context"
	"fmt"
	"os"
	"time"

	"plotstation/devices"
	"plotstation/types"
)

// Plotter delivers one job to the machine and returns when the machine is
// done with it.
type Plotter interface {
	Plot(ctx context.Context, job types.Job) (devices.StreamResult, error)
}

// StreamPlotter streams the job's command file over a serial link it owns.
type StreamPlotter struct {
	Link         *devices.Link
	Streamer     *devices.Streamer
	HomeEachJob  bool
	SettingsMode bool
}

func (p *StreamPlotter) Plot(ctx context.Context, job types.Job) (devices.StreamResult, error) {
	f, err := os.Open(job.Path)
	if err != nil {
		return devices.StreamResult{}, fmt.Errorf("open command file: %w", err)
	}
	defer f.Close()

	if p.HomeEachJob {
		if err := p.Link.Home(ctx); err != nil {
			return devices.StreamResult{}, err
		}
		if err := p.Link.WaitIdle(ctx); err != nil {
			return devices.StreamResult{}, err
		}
	}

	if p.SettingsMode {
		return p.Streamer.StreamSettings(ctx, p.Link, f)
	}
	return p.Streamer.Stream(ctx, p.Link, f)
}

// SimulatedPlotter stands in for a device during development: it keeps the
// job busy for Delay and touches nothing.
type SimulatedPlotter struct {
	Delay time.Duration
}

func (p SimulatedPlotter) Plot(ctx context.Context, job types.Job) (devices.StreamResult, error) {
	t := time.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return devices.StreamResult{}, nil
	case <-ctx.Done():
		return devices.StreamResult{}, ctx.Err()
	}
}
