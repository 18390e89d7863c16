package config

import "time"

// grbl wire protocol
const (
	CMD_HOME         = "$H"
	CMD_STATUS_QUERY = "?"

	RESP_OK     = "ok"
	RESP_ERROR  = "error"
	RESP_ALARM  = "ALARM"
	REPORT_OPEN = "<"
	STATE_IDLE  = "Idle"

	// grbl serial receive buffer
	RX_BUFFER_SIZE = 128
)

const (
	BAUD_RATE          = 115200
	READ_TIMEOUT       = 1 * time.Second
	BOOT_SETTLE        = 2 * time.Second
	BOOT_BANNER_LINES  = 3
	STATUS_RETRY_DELAY = 100 * time.Millisecond
	FLUSH_QUIET        = 100 * time.Millisecond

	POLL_INTERVAL   = 100 * time.Millisecond
	SIMULATED_DELAY = 20 * time.Second
	WATCH_INTERVAL  = 1 * time.Second

	SERVER_PORT        = ":8080"
	WS_STATUS_INTERVAL = 1 * time.Second
	WS_PING_INTERVAL   = 30 * time.Second

	DRIVER_BUGST   = "bugst"
	DRIVER_JACOBSA = "jacobsa"
	PORT_AUTO      = "auto"
)
