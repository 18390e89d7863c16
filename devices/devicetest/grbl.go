// Package devicetest provides an in-memory grbl controller for tests. It
// speaks the line protocol over pipes and keeps account of its own receive
// buffer so tests can check flow control from the device's side.
package devicetest

import (
	"io"
	"strings"
	"sync"
	"time"
)

// Options configures the emulated controller.
type Options struct {
	// Banner is written once at start, before any command is read.
	Banner []string
	// AckDelay is the time spent "executing" each command before its answer.
	AckDelay time.Duration
	// Respond maps a command to its answer lines; nil answers "ok".
	Respond func(command string) []string
	// IgnoreHome swallows $H without answering.
	IgnoreHome bool
	// RunReports is the number of status queries answered with Run before
	// Idle is reported; a negative value never reports Idle.
	RunReports int
}

// Grbl is the device end of the connection. Port returns the host end.
type Grbl struct {
	opts Options

	hostR *io.PipeReader // host reads device output
	devW  *io.PipeWriter
	devR  *io.PipeReader // device reads host output
	hostW *io.PipeWriter

	writeMu sync.Mutex
	queue   chan string

	mu             sync.Mutex
	cond           *sync.Cond
	held           bool
	received       []string
	answered       int
	outstanding    int
	maxOutstanding int
	statusQueries  int
	runReports     int
	executing      int
}

func NewGrbl(opts Options) *Grbl {
	hostR, devW := io.Pipe()
	devR, hostW := io.Pipe()
	g := &Grbl{
		opts:       opts,
		hostR:      hostR,
		devW:       devW,
		devR:       devR,
		hostW:      hostW,
		queue:      make(chan string, 4096),
		runReports: opts.RunReports,
	}
	g.cond = sync.NewCond(&g.mu)

	go func() {
		for _, line := range opts.Banner {
			g.send(line)
		}
		g.readLoop()
	}()
	go g.execLoop()
	return g
}

// Port returns the host side of the serial connection.
func (g *Grbl) Port() io.ReadWriteCloser {
	return &hostPort{g: g}
}

type hostPort struct {
	g *Grbl
}

func (p *hostPort) Read(b []byte) (int, error)  { return p.g.hostR.Read(b) }
func (p *hostPort) Write(b []byte) (int, error) { return p.g.hostW.Write(b) }
func (p *hostPort) Close() error {
	p.g.Close()
	return nil
}

// Close tears down both directions.
func (g *Grbl) Close() {
	g.mu.Lock()
	g.held = false
	g.cond.Broadcast()
	g.mu.Unlock()

	g.hostW.Close()
	g.devW.Close()
	g.hostR.Close()
	g.devR.Close()
}

// Hold stops the device from answering commands until Release.
func (g *Grbl) Hold() {
	g.mu.Lock()
	g.held = true
	g.mu.Unlock()
}

func (g *Grbl) Release() {
	g.mu.Lock()
	g.held = false
	g.cond.Broadcast()
	g.mu.Unlock()
}

// Received returns every complete command line seen so far.
func (g *Grbl) Received() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.received...)
}

// Answered is the number of commands the device has responded to.
func (g *Grbl) Answered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.answered
}

// MaxOutstanding is the high-water mark of bytes received but not yet
// answered, i.e. the peak fill of the receive buffer.
func (g *Grbl) MaxOutstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxOutstanding
}

func (g *Grbl) StatusQueries() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusQueries
}

func (g *Grbl) send(line string) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	io.WriteString(g.devW, line+"\r\n")
}

func (g *Grbl) readLoop() {
	buf := make([]byte, 64)
	var line []byte
	for {
		n, err := g.devR.Read(buf)
		for _, b := range buf[:n] {
			switch b {
			case '?':
				g.sendStatus()
			case '\n':
				g.receive(string(line))
				line = line[:0]
			default:
				line = append(line, b)
			}
		}
		if err != nil {
			close(g.queue)
			return
		}
	}
}

func (g *Grbl) receive(command string) {
	command = strings.TrimRight(command, "\r")

	g.mu.Lock()
	g.received = append(g.received, command)
	g.outstanding += len(command) + 1
	if g.outstanding > g.maxOutstanding {
		g.maxOutstanding = g.outstanding
	}
	g.executing++
	g.mu.Unlock()

	g.queue <- command
}

func (g *Grbl) execLoop() {
	for command := range g.queue {
		g.mu.Lock()
		for g.held {
			g.cond.Wait()
		}
		g.mu.Unlock()

		if g.opts.AckDelay > 0 {
			time.Sleep(g.opts.AckDelay)
		}

		answer := []string{"ok"}
		switch {
		case command == "$H" && g.opts.IgnoreHome:
			answer = nil
		case g.opts.Respond != nil:
			answer = g.opts.Respond(command)
		}

		// the buffer slot frees before the host can see the answer
		g.mu.Lock()
		g.outstanding -= len(command) + 1
		g.executing--
		g.answered++
		g.mu.Unlock()

		for _, line := range answer {
			g.send(line)
		}
	}
}

func (g *Grbl) sendStatus() {
	g.mu.Lock()
	g.statusQueries++
	state := "Idle"
	if g.executing > 0 {
		state = "Run"
	} else if g.runReports != 0 {
		state = "Run"
		if g.runReports > 0 {
			g.runReports--
		}
	}
	g.mu.Unlock()

	go g.send("<" + state + "|MPos:0.000,0.000,0.000|FS:0,0>")
}
