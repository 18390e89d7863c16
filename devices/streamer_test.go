package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"plotstation/devices/devicetest"
)

type streamOutcome struct {
	result StreamResult
	err    error
}

func streamAsync(s *Streamer, l *Link, commands string, settings bool) <-chan streamOutcome {
	done := make(chan streamOutcome, 1)
	go func() {
		var out streamOutcome
		if settings {
			out.result, out.err = s.StreamSettings(context.Background(), l, strings.NewReader(commands))
		} else {
			out.result, out.err = s.Stream(context.Background(), l, strings.NewReader(commands))
		}
		done <- out
	}()
	return done
}

func waitOutcome(t *testing.T, done <-chan streamOutcome) StreamResult {
	t.Helper()
	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("stream: %v", out.err)
		}
		return out.result
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not finish")
	}
	return StreamResult{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamPipelinesWithoutWaiting(t *testing.T) {
	g := devicetest.NewGrbl(devicetest.Options{})
	l := newTestLink(t, g, testOptions())
	g.Hold()

	// five 10-byte commands: 5 * 11 = 55 bytes, well under the 127 limit
	commands := []string{"G1 X10 Y10", "G1 X20 Y10", "G1 X20 Y20", "G1 X10 Y20", "G1 X10 Y10"}
	done := streamAsync(&Streamer{BufferSize: 128}, l, strings.Join(commands, "\n")+"\n", false)

	waitFor(t, "all five commands", func() bool { return len(g.Received()) == 5 })
	if n := g.Answered(); n != 0 {
		t.Fatalf("device answered %d commands while held", n)
	}
	g.Release()

	res := waitOutcome(t, done)
	if res.Sent != 5 || res.Acked != 5 || res.Failed() {
		t.Errorf("result = %+v, want 5 sent, 5 acked, no errors", res)
	}
	if res.MaxPending != 55 {
		t.Errorf("max pending = %d, want 55", res.MaxPending)
	}
	if q := g.StatusQueries(); q != 1 {
		t.Errorf("status queries = %d, want exactly one Idle report", q)
	}
}

func TestStreamOversizedCommand(t *testing.T) {
	g := devicetest.NewGrbl(devicetest.Options{})
	l := newTestLink(t, g, testOptions())

	long := "G1 X1 " + strings.Repeat("0", 124) // 130 bytes, cost 131
	res := waitOutcome(t, streamAsync(&Streamer{BufferSize: 128}, l, long+"\n", false))

	if res.Sent != 1 || res.Acked != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.MaxPending != 131 {
		t.Errorf("max pending = %d, want 131", res.MaxPending)
	}
}

func TestStreamOversizedWaitsForEmptyBuffer(t *testing.T) {
	g := devicetest.NewGrbl(devicetest.Options{AckDelay: 5 * time.Millisecond})
	l := newTestLink(t, g, testOptions())

	long := strings.Repeat("X", 130)
	commands := "G0 X0\nG0 Y0\nG0 Z0\n" + long + "\nG0 X5\n"
	res := waitOutcome(t, streamAsync(&Streamer{BufferSize: 128}, l, commands, false))

	if res.Sent != 5 || res.Acked != 5 {
		t.Errorf("result = %+v", res)
	}
	if m := g.MaxOutstanding(); m != 131 {
		t.Errorf("device buffer peak = %d, want 131 (oversized line alone)", m)
	}
}

func TestStreamNeverOverflowsBuffer(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		delay    time.Duration
	}{
		{"grbl", 128, 0},
		{"grbl slow", 128, time.Millisecond},
		{"small", 32, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := devicetest.NewGrbl(devicetest.Options{AckDelay: tt.delay})
			l := newTestLink(t, g, testOptions())

			var sb strings.Builder
			var want []string
			for i := 0; i < 120; i++ {
				cmd := fmt.Sprintf("G1 X%d Y%d F%d", i*7%300, i*13%300, 1000+i%5*500)
				want = append(want, cmd)
				sb.WriteString(cmd + "\n")
			}

			res := waitOutcome(t, streamAsync(&Streamer{BufferSize: tt.capacity}, l, sb.String(), false))

			if res.Sent != len(want) || res.Acked != len(want) {
				t.Errorf("sent=%d acked=%d, want %d", res.Sent, res.Acked, len(want))
			}
			if res.MaxPending > tt.capacity-1 {
				t.Errorf("host pending peak %d exceeds %d", res.MaxPending, tt.capacity-1)
			}
			if m := g.MaxOutstanding(); m > tt.capacity-1 {
				t.Errorf("device buffer peak %d exceeds %d", m, tt.capacity-1)
			}

			got := g.Received()
			if len(got) != len(want) {
				t.Fatalf("device received %d lines, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestStreamErrorMarksFailedAndKeepsGoing(t *testing.T) {
	g := devicetest.NewGrbl(devicetest.Options{
		Respond: func(cmd string) []string {
			if cmd == "G1 X999" {
				return []string{"error:15"}
			}
			return []string{"ok"}
		},
	})
	l := newTestLink(t, g, testOptions())

	commands := "G21\nG90\nG1 X999\nG1 X1\nG1 X2\n"
	res := waitOutcome(t, streamAsync(&Streamer{BufferSize: 128}, l, commands, false))

	if !res.Failed() {
		t.Fatal("expected failed result")
	}
	if len(res.Errors) != 1 || res.Errors[0] != "error:15" {
		t.Errorf("errors = %q", res.Errors)
	}
	if res.Sent != 5 || res.Acked != 4 {
		t.Errorf("sent=%d acked=%d, want 5 and 4", res.Sent, res.Acked)
	}
	if len(g.Received()) != 5 {
		t.Error("stream stopped after the error")
	}
}

func TestStreamDiagnosticsDoNotPop(t *testing.T) {
	g := devicetest.NewGrbl(devicetest.Options{
		Respond: func(cmd string) []string {
			if cmd == "M2" {
				return []string{"[MSG:Pgm End]", "ok"}
			}
			return []string{"ok"}
		},
	})
	l := newTestLink(t, g, testOptions())

	res := waitOutcome(t, streamAsync(&Streamer{BufferSize: 128}, l, "G0 X1\nM2\n", false))
	if res.Diagnostics != 1 || res.Acked != 2 {
		t.Errorf("result = %+v, want 1 diagnostic and 2 acks", res)
	}
}

func TestStreamTrimsTrailingWhitespace(t *testing.T) {
	g := devicetest.NewGrbl(devicetest.Options{})
	l := newTestLink(t, g, testOptions())

	waitOutcome(t, streamAsync(&Streamer{}, l, "G0 X1   \r\nG0 Y1\t\n", false))
	got := g.Received()
	if len(got) != 2 || got[0] != "G0 X1" || got[1] != "G0 Y1" {
		t.Errorf("received %q", got)
	}
}

func TestStreamSettingsIsCallResponse(t *testing.T) {
	g := devicetest.NewGrbl(devicetest.Options{AckDelay: 3 * time.Millisecond})
	l := newTestLink(t, g, testOptions())

	settings := []string{"$100=80", "$101=80", "$110=5000", "$120=10.5"}
	res := waitOutcome(t, streamAsync(&Streamer{}, l, strings.Join(settings, "\n"), true))

	if res.Sent != 4 || res.Acked != 4 {
		t.Errorf("result = %+v", res)
	}
	longest := 0
	for _, s := range settings {
		if c := CommandCost(s); c > longest {
			longest = c
		}
	}
	if m := g.MaxOutstanding(); m != longest {
		t.Errorf("device held %d bytes at once, want %d (one command at a time)", m, longest)
	}
	if g.StatusQueries() != 0 {
		t.Error("settings mode should not poll status")
	}
}

func TestStreamAfterTimeoutKeepsFIFO(t *testing.T) {
	g := devicetest.NewGrbl(devicetest.Options{
		Respond: func(cmd string) []string {
			if cmd == "BAD" {
				return []string{"error:9"}
			}
			return []string{"ok"}
		},
	})
	opts := testOptions()
	opts.IdleTimeout = 100 * time.Millisecond
	l := newTestLink(t, g, opts)

	leaveStaleAcks(t, g, l, "BAD\nG0 X1\n")

	res := waitOutcome(t, streamAsync(&Streamer{BufferSize: 128}, l, "G0 X2\nG0 X3\nG0 X4\n", false))
	if res.Failed() || res.Acked != 3 {
		t.Errorf("result = %+v, want 3 acks and no errors from the earlier job", res)
	}
}

func TestStreamBufferWaitTimeout(t *testing.T) {
	g := devicetest.NewGrbl(devicetest.Options{})
	opts := testOptions()
	opts.IdleTimeout = 100 * time.Millisecond
	l := newTestLink(t, g, opts)
	g.Hold()

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "G1 X%d Y0\n", 100+i)
	}

	select {
	case out := <-streamAsync(&Streamer{BufferSize: 32}, l, sb.String(), false):
		if !errors.Is(out.err, ErrTimeout) {
			t.Fatalf("stream error = %v, want ErrTimeout", out.err)
		}
		if out.result.Sent >= 10 {
			t.Errorf("sent %d commands into a full buffer", out.result.Sent)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream hung waiting for buffer room")
	}
}

