package devices

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"plotstation/config"
	"plotstation/logging"
)

// StreamResult summarises one delivered command file.
type StreamResult struct {
	Sent        int      `json:"sent"`
	Acked       int      `json:"acked"`
	Errors      []string `json:"errors,omitempty"`
	Diagnostics int      `json:"diagnostics"`
	// MaxPending is the largest number of unacknowledged bytes right after
	// a transmission.
	MaxPending int `json:"max_pending"`
}

// Failed reports whether the controller rejected at least one command.
func (r StreamResult) Failed() bool {
	return len(r.Errors) > 0
}

// Streamer feeds command files to a Link.
type Streamer struct {
	BufferSize int
	Verbose    bool
}

func NewStreamer(s config.Settings) *Streamer {
	return &Streamer{BufferSize: s.BufferSize, Verbose: s.Verbose}
}

func (s *Streamer) capacity() int {
	if s.BufferSize <= 0 {
		return config.RX_BUFFER_SIZE
	}
	return s.BufferSize
}

// Stream sends every line of r without ever letting the unacknowledged bytes
// reach the controller's receive buffer limit, so the controller always has
// the next command at hand. Rejected commands are recorded, not resent. It
// returns once all commands are answered and the machine is Idle.
func (s *Streamer) Stream(ctx context.Context, link *Link, r io.Reader) (StreamResult, error) {
	var (
		result  StreamResult
		pending PendingQueue
		limit   = s.capacity() - 1
	)

	link.Flush(ctx)

	scanner := newCommandScanner(r)
	for scanner.Scan() {
		command := strings.TrimRight(scanner.Text(), " \t\r\n")
		cost := CommandCost(command)

		// A command that can never fit goes out once the queue has emptied.
		full := func() bool {
			return (pending.Len() > 0 && pending.Sum()+cost >= limit) || link.Available()
		}
		if err := s.awaitAcks(ctx, "buffer wait", link, &pending, &result, full); err != nil {
			return result, err
		}

		pending.Push(cost)
		s.trace("SND: %d : %s", result.Sent+1, command)
		if err := link.WriteLine(command); err != nil {
			return result, err
		}
		result.Sent++
		if pending.Sum() > result.MaxPending {
			result.MaxPending = pending.Sum()
		}
		s.trace("BUF: %d", pending.Sum())
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read commands: %w", err)
	}

	if err := s.drain(ctx, link, &pending, &result); err != nil {
		return result, err
	}
	if err := link.WaitIdle(ctx); err != nil {
		return result, err
	}

	if s.Verbose {
		logging.Info("grbl", "streaming finished: %d sent, %d ok, %d errors", result.Sent, result.Acked, len(result.Errors))
	}
	return result, nil
}

// drain collects the answers still owed for the tail of the file.
func (s *Streamer) drain(ctx context.Context, link *Link, pending *PendingQueue, result *StreamResult) error {
	return s.awaitAcks(ctx, "drain", link, pending, result, func() bool {
		return pending.Len() > 0
	})
}

// awaitAcks handles responses while more reports true. The idle timeout, when
// set, bounds the whole wait.
func (s *Streamer) awaitAcks(ctx context.Context, op string, link *Link, pending *PendingQueue, result *StreamResult, more func() bool) error {
	if !more() {
		return nil
	}
	ctx, cancel := withTimeout(ctx, link.opts.IdleTimeout)
	defer cancel()

	for more() {
		line, err := link.readLine(ctx)
		if err != nil {
			return deadlineError(op, err)
		}
		s.handleResponse(line, pending, result)
	}
	return nil
}

func (s *Streamer) handleResponse(line string, pending *PendingQueue, result *StreamResult) {
	kind := ClassifyResponse(line)
	switch kind {
	case RespEmpty:
		return
	case RespOK, RespError:
		if _, ok := pending.Pop(); !ok {
			logging.Warn("grbl", "unmatched response: %s", line)
			return
		}
		if kind == RespError {
			result.Errors = append(result.Errors, line)
			logging.Warn("grbl", "command %d rejected: %s", result.Acked+len(result.Errors), line)
		} else {
			result.Acked++
		}
		s.trace("REC: %s BUF: %d", line, pending.Sum())
	default:
		result.Diagnostics++
		logging.Info("grbl", "debug: %s", line)
	}
}

// StreamSettings sends commands strictly one at a time, waiting for each
// answer. grbl stops servicing the serial interrupt while it writes EEPROM
// settings, so pipelining would lose responses.
func (s *Streamer) StreamSettings(ctx context.Context, link *Link, r io.Reader) (StreamResult, error) {
	var result StreamResult

	link.Flush(ctx)

	scanner := newCommandScanner(r)
	for scanner.Scan() {
		command := strings.TrimSpace(scanner.Text())
		s.trace("SND: %d : %s", result.Sent+1, command)
		if err := link.WriteLine(command); err != nil {
			return result, err
		}
		result.Sent++
		if c := CommandCost(command); c > result.MaxPending {
			result.MaxPending = c
		}

		var pending PendingQueue
		pending.Push(CommandCost(command))
		waiting := func() bool { return pending.Len() > 0 }
		if err := s.awaitAcks(ctx, "settings", link, &pending, &result, waiting); err != nil {
			return result, err
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read settings: %w", err)
	}
	return result, nil
}

func newCommandScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	return scanner
}

func (s *Streamer) trace(format string, args ...any) {
	if s.Verbose {
		logging.Info("grbl", format, args...)
		return
	}
	logging.Debug("grbl", format, args...)
}
