// Package diag formats raw protocol bytes for diagnostic logs.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MaxColumns is the number of bytes per dump line.
const MaxColumns = 16

// Formatter accumulates hex dumps of protocol traffic.
// Bytes added one by one are grouped under a single timestamped header until
// the next DumpPacket or Flush. Not safe for concurrent use.
type Formatter struct {
	header         string
	b              strings.Builder
	columns        int
	requiresHeader bool
	needsNewLine   bool
	now            func() time.Time
}

// NewFormatter returns a formatter whose lines are tagged with header.
func NewFormatter(header string) *Formatter {
	return &Formatter{
		header:         header,
		requiresHeader: true,
		now:            time.Now,
	}
}

func (f *Formatter) timestamp() string {
	return f.now().UTC().Format("15:04:05.000")
}

// Header writes the header line unless one is already pending.
func (f *Formatter) Header() {
	if !f.requiresHeader {
		return
	}
	fmt.Fprintf(&f.b, "%s >>>> %s\n", f.timestamp(), f.header)
	f.requiresHeader = false
}

// AddByte appends one byte to the current dump.
func (f *Formatter) AddByte(v byte) {
	f.Header()
	f.needsNewLine = true

	fmt.Fprintf(&f.b, "0x%02X, ", v)
	f.columns++

	if f.columns+1 > MaxColumns {
		f.columns = 0
		f.b.WriteByte('\n')
		f.needsNewLine = false
	}
}

// AddBytes appends each byte of p.
func (f *Formatter) AddBytes(p []byte) {
	for _, v := range p {
		f.AddByte(v)
	}
}

// DumpPacket writes a complete packet with its own header line.
func (f *Formatter) DumpPacket(name string, payload []byte) {
	if f.needsNewLine {
		f.b.WriteByte('\n')
		f.needsNewLine = false
	}

	fmt.Fprintf(&f.b, "%s >>>> %s: RawPacket %s, length = %d\n", f.timestamp(), f.header, name, len(payload))

	justAppendedNewLine := true
	for i, v := range payload {
		justAppendedNewLine = false
		fmt.Fprintf(&f.b, "0x%02X, ", v)
		if (i+1)%MaxColumns == 0 {
			f.b.WriteByte('\n')
			justAppendedNewLine = true
		}
	}
	if !justAppendedNewLine {
		f.b.WriteByte('\n')
	}

	f.columns = 0
	f.requiresHeader = true
}

// Flush returns the accumulated text and resets the formatter.
func (f *Formatter) Flush() string {
	if f.needsNewLine {
		f.b.WriteByte('\n')
	}
	out := f.b.String()

	f.b.Reset()
	f.columns = 0
	f.needsNewLine = false
	f.requiresHeader = true

	return out
}

// LogBytes dumps p at debug level. Formatting is skipped when debug is off.
func LogBytes(ctx context.Context, logger *slog.Logger, header, name string, p []byte, attrs ...any) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	f := NewFormatter(header)
	f.DumpPacket(name, p)
	logger.DebugContext(ctx, "packet dump", append(attrs, "dump", f.Flush())...)
}
