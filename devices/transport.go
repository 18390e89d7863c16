package devices

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"plotstation/config"
	"plotstation/logging"

	goserial "github.com/jacobsa/go-serial/serial"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// OpenPort opens the serial channel described by s and returns it together
// with the resolved port name. Any failure is a *ConnectionError.
func OpenPort(s config.Settings) (io.ReadWriteCloser, string, error) {
	name := s.Port
	if name == config.PORT_AUTO {
		detected, err := DetectPort()
		if err != nil {
			return nil, name, &ConnectionError{Port: name, Err: err}
		}
		name = detected
	}

	var (
		port io.ReadWriteCloser
		err  error
	)
	switch s.Driver {
	case config.DRIVER_JACOBSA:
		port, err = openJacobsa(name, s)
	default:
		port, err = openBugst(name, s)
	}
	if err != nil {
		return nil, name, &ConnectionError{Port: name, Err: err}
	}

	logging.Info("grbl", "opened %s at %d baud (%s)", name, s.BaudRate, s.Driver)
	return port, name, nil
}

func openBugst(name string, s config.Settings) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	conn, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	// a timed out read returns 0, nil; the link reader treats it as "nothing yet"
	if err := conn.SetReadTimeout(s.ReadTimeout); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return conn, nil
}

func openJacobsa(name string, s config.Settings) (io.ReadWriteCloser, error) {
	port, err := goserial.Open(jacobsaOptions(name, s))
	if err != nil {
		return nil, err
	}
	return timeoutPort{port}, nil
}

// jacobsaOptions maps the read timeout onto VTIME, which counts in tenths of
// a second between 0.1s and 25.5s.
func jacobsaOptions(name string, s config.Settings) goserial.OpenOptions {
	ms := s.ReadTimeout.Milliseconds()
	ms = max(100, min(ms, 25500))
	return goserial.OpenOptions{
		PortName:              name,
		BaudRate:              uint(s.BaudRate),
		DataBits:              8,
		StopBits:              1,
		InterCharacterTimeout: uint(ms),
		MinimumReadSize:       0,
	}
}

// timeoutPort turns the io.EOF that *os.File reports for an empty timed read
// into the (0, nil) the link reader expects from every driver.
type timeoutPort struct {
	io.ReadWriteCloser
}

func (p timeoutPort) Read(b []byte) (int, error) {
	n, err := p.ReadWriteCloser.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

// DetectPort returns the first USB serial port, falling back to the first
// well-known device node that exists.
func DetectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		logging.Warn("grbl", "port enumeration failed: %v", err)
	}
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		logging.Info("grbl", "found %s (VID: %s, PID: %s, Product: %s)", port.Name, port.VID, port.PID, port.Product)
		return port.Name, nil
	}

	names, err := serial.GetPortsList()
	if err == nil && len(names) > 0 {
		return names[0], nil
	}

	for _, name := range getCommonPorts() {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", errors.New("no serial port found")
}

// getCommonPorts returns common serial port names based on the operating system
func getCommonPorts() []string {
	switch runtime.GOOS {
	case "windows":
		var ports []string
		for i := 1; i <= 20; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports
	case "linux":
		return []string{
			"/dev/ttyUSB0", "/dev/ttyUSB1",
			"/dev/ttyACM0", "/dev/ttyACM1",
			"/dev/ttyAMA0", "/dev/serial0",
		}
	case "darwin":
		return []string{
			"/dev/cu.usbserial", "/dev/cu.usbmodem",
			"/dev/tty.usbserial", "/dev/tty.usbmodem",
		}
	default:
		return []string{}
	}
}
