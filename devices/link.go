package devices

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"plotstation/config"
	"plotstation/logging"
	"plotstation/utils"
)

// LinkOptions tunes the wire session. Zero timeouts on homing and idle wait
// block until the controller answers.
type LinkOptions struct {
	ReadTimeout time.Duration
	StatusRetry time.Duration
	HomeTimeout time.Duration
	IdleTimeout time.Duration
	Verbose     bool

	// FlushQuiet is how long the controller must stay silent before a
	// flush considers the line clear.
	FlushQuiet time.Duration
}

func OptionsFromSettings(s config.Settings) LinkOptions {
	return LinkOptions{
		ReadTimeout: s.ReadTimeout,
		StatusRetry: config.STATUS_RETRY_DELAY,
		HomeTimeout: s.HomeTimeout,
		IdleTimeout: s.IdleTimeout,
		FlushQuiet:  config.FLUSH_QUIET,
		Verbose:     s.Verbose,
	}
}

// Link is the session with one grbl controller. It is owned by a single
// goroutine; only the internal reader runs alongside it.
type Link struct {
	port io.ReadWriteCloser
	name string
	opts LinkOptions

	lines  chan string
	failed chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool

	failOnce  sync.Once
	closeOnce sync.Once
}

// Open opens the configured port, waits for the controller to finish its
// reset and discards the boot banner.
func Open(s config.Settings) (*Link, error) {
	port, name, err := OpenPort(s)
	if err != nil {
		return nil, err
	}
	return OpenWith(port, name, s)
}

// OpenWith runs the boot handshake over an already opened port.
func OpenWith(port io.ReadWriteCloser, name string, s config.Settings) (*Link, error) {
	l := NewLink(port, name, OptionsFromSettings(s))

	time.Sleep(s.BootSettle)

	logging.Info("grbl", "initializing grbl on %s", name)
	for i := 0; i < s.BannerLines; i++ {
		line, err := l.ReadLine()
		if err != nil {
			l.Close()
			return nil, &ConnectionError{Port: name, Err: err}
		}
		if line != "" {
			logging.Info("grbl", "banner: %s", line)
		}
	}
	return l, nil
}

// NewLink wraps port without any handshake and starts the line reader.
func NewLink(port io.ReadWriteCloser, name string, opts LinkOptions) *Link {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = config.READ_TIMEOUT
	}
	if opts.StatusRetry <= 0 {
		opts.StatusRetry = config.STATUS_RETRY_DELAY
	}
	if opts.FlushQuiet <= 0 {
		opts.FlushQuiet = config.FLUSH_QUIET
	}
	l := &Link{
		port:   port,
		name:   name,
		opts:   opts,
		lines:  make(chan string, 256),
		failed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.readLoop()
	return l
}

func (l *Link) Name() string {
	return l.name
}

func (l *Link) readLoop() {
	buf := make([]byte, 256)
	var partial []byte

	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			if l.opts.Verbose {
				logging.Debug("grbl", "RX %s", utils.FormatDataForLog(buf[:n]))
			}
			partial = append(partial, buf[:n]...)
			for {
				i := bytes.IndexByte(partial, '\n')
				if i < 0 {
					break
				}
				line := strings.TrimSpace(string(partial[:i]))
				partial = partial[i+1:]
				select {
				case l.lines <- line:
				case <-l.done:
					return
				}
			}
		}
		if err != nil {
			l.fail(err)
			return
		}
		select {
		case <-l.done:
			return
		default:
		}
	}
}

func (l *Link) fail(err error) {
	l.failOnce.Do(func() {
		l.mu.Lock()
		if l.closed {
			err = ErrClosed
		} else {
			err = fmt.Errorf("grbl: read %s: %w", l.name, err)
		}
		l.err = err
		l.mu.Unlock()
		close(l.failed)
	})
}

// Err returns the read error that stopped the link, if any.
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// ReadLine returns the next response line with its terminator stripped, or
// "" when nothing arrives within the read timeout.
func (l *Link) ReadLine() (string, error) {
	return l.readLine(context.Background())
}

func (l *Link) readLine(ctx context.Context) (string, error) {
	select {
	case line := <-l.lines:
		return line, nil
	default:
	}

	timer := time.NewTimer(l.opts.ReadTimeout)
	defer timer.Stop()

	select {
	case line := <-l.lines:
		return line, nil
	case <-l.failed:
		select {
		case line := <-l.lines:
			return line, nil
		default:
		}
		return "", l.Err()
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", nil
	}
}

// Flush discards responses left over from an earlier exchange, such as the
// late acks of a stream that timed out. It returns the number of lines
// dropped once nothing has arrived for the quiet window.
func (l *Link) Flush(ctx context.Context) int {
	dropped := 0
	quiet := time.NewTimer(l.opts.FlushQuiet)
	defer quiet.Stop()

	for {
		select {
		case line := <-l.lines:
			if line != "" {
				logging.Debug("grbl", "discarding stale response: %s", line)
				dropped++
			}
			quiet.Reset(l.opts.FlushQuiet)
		case <-quiet.C:
			if dropped > 0 {
				logging.Warn("grbl", "flushed %d stale responses from %s", dropped, l.name)
			}
			return dropped
		case <-l.failed:
			return dropped
		case <-ctx.Done():
			return dropped
		}
	}
}

// Available reports whether a complete response is already waiting.
func (l *Link) Available() bool {
	return len(l.lines) > 0
}

// WriteLine sends one command followed by a newline.
func (l *Link) WriteLine(command string) error {
	return l.WriteRaw(command + "\n")
}

// WriteRaw sends bytes as they are; used for realtime commands such as '?'.
func (l *Link) WriteRaw(data string) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	if _, err := io.WriteString(l.port, data); err != nil {
		return fmt.Errorf("grbl: write %s: %w", l.name, err)
	}
	return nil
}

// Home runs the homing cycle and returns once the controller acknowledges it.
// Other lines are discarded.
func (l *Link) Home(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, l.opts.HomeTimeout)
	defer cancel()

	l.Flush(ctx)
	logging.Info("grbl", "homing %s", l.name)
	if err := l.WriteLine(config.CMD_HOME); err != nil {
		return err
	}
	for {
		line, err := l.readLine(ctx)
		if err != nil {
			return deadlineError("homing", err)
		}
		if ClassifyResponse(line) == RespOK {
			return nil
		}
		if line != "" {
			logging.Debug("grbl", "homing: %s", line)
		}
	}
}

// WaitIdle polls the controller with status queries until it reports Idle,
// i.e. every buffered motion has physically finished.
func (l *Link) WaitIdle(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, l.opts.IdleTimeout)
	defer cancel()

	l.Flush(ctx)
	for {
		if err := l.WriteRaw(config.CMD_STATUS_QUERY); err != nil {
			return err
		}
		line, err := l.readLine(ctx)
		for err == nil && ClassifyResponse(line) != RespReport {
			if err = sleepContext(ctx, l.opts.StatusRetry); err != nil {
				break
			}
			line, err = l.readLine(ctx)
		}
		if err != nil {
			return deadlineError("idle wait", err)
		}

		report, _ := ParseStatusReport(line)
		if l.opts.Verbose {
			logging.Debug("grbl", "status: %s", line)
		}
		if report.Idle() {
			return nil
		}
	}
}

// Close stops the reader and closes the port.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.done)
		err = l.port.Close()
	})
	return err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
