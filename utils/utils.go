package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

func BoolToString(b bool) string {
	if b {
		return "busy"
	}
	return "ready"
}

// FormatDataForLog renders serial bytes with control characters escaped so
// stray firmware output is readable in the log.
func FormatDataForLog(data []byte) string {
	if len(data) == 0 {
		return "no data"
	}

	var sb strings.Builder
	for _, b := range data {
		switch {
		case b >= 32 && b <= 126:
			sb.WriteByte(b)
		case b == '\n':
			sb.WriteString(`\n`)
		case b == '\r':
			sb.WriteString(`\r`)
		case b == '\t':
			sb.WriteString(`\t`)
		default:
			fmt.Fprintf(&sb, `\x%02X`, b)
		}
	}

	return fmt.Sprintf("%q (%d bytes)", sb.String(), len(data))
}

// LabelFromPath turns "exports/drawing_12.gcode" into "drawing_12".
func LabelFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PathWithin reports whether path names root or something below it. Both are
// compared as cleaned absolute paths; symlinks are not resolved here.
func PathWithin(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
