package devices

import (
	"regexp"
	"strconv"
	"strings"

	"plotstation/config"
)

type ResponseKind int

const (
	RespEmpty ResponseKind = iota
	RespOK
	RespError
	RespAlarm
	RespReport
	RespOther
)

func (k ResponseKind) String() string {
	switch k {
	case RespEmpty:
		return "empty"
	case RespOK:
		return "ok"
	case RespError:
		return "error"
	case RespAlarm:
		return "alarm"
	case RespReport:
		return "report"
	default:
		return "other"
	}
}

// ClassifyResponse sorts one inbound line. Acknowledgement and error are
// substring matches, status reports are recognised by their leading '<'.
func ClassifyResponse(line string) ResponseKind {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return RespEmpty
	case strings.HasPrefix(line, config.REPORT_OPEN):
		return RespReport
	case strings.Contains(line, config.RESP_ERROR):
		return RespError
	case strings.Contains(line, config.RESP_OK):
		return RespOK
	case strings.HasPrefix(line, config.RESP_ALARM):
		return RespAlarm
	default:
		return RespOther
	}
}

type MachineState string

const (
	StateIdle    MachineState = "Idle"
	StateRun     MachineState = "Run"
	StateHold    MachineState = "Hold"
	StateJog     MachineState = "Jog"
	StateAlarm   MachineState = "Alarm"
	StateDoor    MachineState = "Door"
	StateCheck   MachineState = "Check"
	StateHome    MachineState = "Home"
	StateSleep   MachineState = "Sleep"
	StateUnknown MachineState = "Unknown"
)

type Point struct {
	X, Y, Z float64
}

type StatusReport struct {
	State    MachineState
	SubState string
	MPos     *Point
	WPos     *Point
}

// Idle reports whether the body of the report starts with the Idle state name.
func (r StatusReport) Idle() bool {
	return r.State == StateIdle
}

var (
	grblReport = regexp.MustCompile(`^<(.*)>$`)
	posField   = regexp.MustCompile(`(MPos|WPos):([-+]?[0-9]*\.?[0-9]+),([-+]?[0-9]*\.?[0-9]+),([-+]?[0-9]*\.?[0-9]+)`)
)

// ParseStatusReport understands both the grbl 0.9 comma form
// "<Idle,MPos:0.000,0.000,0.000,WPos:...>" and the 1.1 pipe form
// "<Hold:0|MPos:0.000,0.000,0.000|FS:0,0>".
func ParseStatusReport(line string) (StatusReport, bool) {
	parts := grblReport.FindStringSubmatch(strings.TrimSpace(line))
	if parts == nil {
		return StatusReport{}, false
	}
	body := parts[1]

	head := body
	if i := strings.IndexAny(body, "|,"); i >= 0 {
		head = body[:i]
	}
	var r StatusReport
	if name, sub, ok := strings.Cut(head, ":"); ok {
		r.State = MachineState(name)
		r.SubState = sub
	} else {
		r.State = MachineState(head)
	}
	if r.State == "" {
		r.State = StateUnknown
	}

	for _, m := range posField.FindAllStringSubmatch(body, -1) {
		p, err := parsePoint(m[2:])
		if err != nil {
			continue
		}
		if m[1] == "MPos" {
			r.MPos = p
		} else {
			r.WPos = p
		}
	}
	return r, true
}

func parsePoint(fields []string) (*Point, error) {
	var v [3]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		v[i] = n
	}
	return &Point{X: v[0], Y: v[1], Z: v[2]}, nil
}
