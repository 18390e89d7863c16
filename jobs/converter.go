package jobs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"plotstation/logging"
	"plotstation/utils"
)

// Converter turns an exported drawing into a command file the plotter can
// stream.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (string, error)
}

// ConversionError carries the converter's own diagnostics.
type ConversionError struct {
	Input  string
	Stderr string
	Err    error
}

func (e *ConversionError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("convert %s: %s", filepath.Base(e.Input), msg)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ExecConverter runs an external tool as `<bin> <input> -o <output>` with the
// output directory as its working directory.
type ExecConverter struct {
	Bin       string
	OutputDir string
}

func (c *ExecConverter) Convert(ctx context.Context, inputPath string) (string, error) {
	if c.Bin == "" {
		return "", &ConversionError{Input: inputPath, Err: fmt.Errorf("no converter configured")}
	}
	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return "", &ConversionError{Input: inputPath, Err: err}
	}

	input, err := filepath.Abs(inputPath)
	if err != nil {
		return "", &ConversionError{Input: inputPath, Err: err}
	}
	outputName := utils.LabelFromPath(inputPath) + ".gcode"
	args := []string{input, "-o", outputName}

	logging.Debug("worker", "running: %s %v", c.Bin, args)

	cmd := exec.CommandContext(ctx, c.Bin, args...)
	cmd.Dir = c.OutputDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &ConversionError{Input: inputPath, Stderr: stderr.String(), Err: err}
	}

	outputPath := filepath.Join(c.OutputDir, outputName)
	if _, err := os.Stat(outputPath); err != nil {
		return "", &ConversionError{Input: inputPath, Err: fmt.Errorf("output not generated")}
	}
	return outputPath, nil
}
