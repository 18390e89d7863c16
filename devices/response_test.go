package devices

import "testing"

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		line string
		want ResponseKind
	}{
		{"", RespEmpty},
		{"  \r", RespEmpty},
		{"ok", RespOK},
		{"ok\r", RespOK},
		{"error:20", RespError},
		{"error: Bad number format", RespError},
		{"ALARM:1", RespAlarm},
		{"<Idle|MPos:0.000,0.000,0.000|FS:0,0>", RespReport},
		{"[MSG:'$H'|'$X' to unlock]", RespOther},
		{"Grbl 1.1h ['$' for help]", RespOther},
	}
	for _, tt := range tests {
		if got := ClassifyResponse(tt.line); got != tt.want {
			t.Errorf("ClassifyResponse(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestParseStatusReport(t *testing.T) {
	tests := []struct {
		line     string
		state    MachineState
		sub      string
		idle     bool
		mposX    float64
		hasWPos  bool
		wposZ    float64
		parsable bool
	}{
		{"<Idle|MPos:1.500,2.000,0.000|FS:0,0>", StateIdle, "", true, 1.5, false, 0, true},
		{"<Run,MPos:10.000,0.000,0.000,WPos:5.000,0.000,-1.250>", StateRun, "", false, 10, true, -1.25, true},
		{"<Hold:0|MPos:0.000,0.000,0.000|FS:0,0>", StateHold, "0", false, 0, false, 0, true},
		{"<Idle>", StateIdle, "", true, 0, false, 0, true},
		{"ok", "", "", false, 0, false, 0, false},
	}
	for _, tt := range tests {
		r, ok := ParseStatusReport(tt.line)
		if ok != tt.parsable {
			t.Errorf("ParseStatusReport(%q) ok = %v", tt.line, ok)
			continue
		}
		if !ok {
			continue
		}
		if r.State != tt.state || r.SubState != tt.sub || r.Idle() != tt.idle {
			t.Errorf("%q: got state=%q sub=%q idle=%v", tt.line, r.State, r.SubState, r.Idle())
		}
		if r.MPos != nil && r.MPos.X != tt.mposX {
			t.Errorf("%q: MPos.X = %v, want %v", tt.line, r.MPos.X, tt.mposX)
		}
		if (r.WPos != nil) != tt.hasWPos {
			t.Errorf("%q: WPos presence = %v", tt.line, r.WPos != nil)
		}
		if r.WPos != nil && r.WPos.Z != tt.wposZ {
			t.Errorf("%q: WPos.Z = %v, want %v", tt.line, r.WPos.Z, tt.wposZ)
		}
	}
}
