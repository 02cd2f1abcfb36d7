// Package output renders CLI results as tables, JSON or YAML.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Format represents the output format type.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a string into a Format, returning an error if invalid.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// Printer handles formatted output to a writer.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter creates a new Printer with the given options.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{
		out:    out,
		format: format,
		color:  color,
	}
}

// DefaultPrinter creates a Printer that writes to stdout with table format.
func DefaultPrinter() *Printer {
	return NewPrinter(os.Stdout, FormatTable, true)
}

// Format returns the printer's output format.
func (p *Printer) Format() Format {
	return p.format
}

// Writer returns the printer's output writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Print outputs data in the configured format.
//
// In table format, data is rendered through TableRenderer or
// KeyValueRenderer and falls back to JSON otherwise. In JSON and YAML
// formats a renderer's Raw value is marshaled when it has one, so the
// structured output keeps its field names.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		switch r := data.(type) {
		case TableRenderer:
			return PrintTable(p.out, r)
		case KeyValueRenderer:
			return PrintKeyValues(p.out, r.KeyValues())
		}
		return PrintJSON(p.out, raw(data))
	case FormatJSON:
		return PrintJSON(p.out, raw(data))
	case FormatYAML:
		return PrintYAML(p.out, raw(data))
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// Rawer is implemented by table views that wrap a structured value.
type Rawer interface {
	Raw() any
}

func raw(data any) any {
	if r, ok := data.(Rawer); ok {
		return r.Raw()
	}
	return data
}

// Println prints a message followed by a newline.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

// Printf prints a formatted message.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Success prints a success message in green.
func (p *Printer) Success(msg string) {
	p.colored("32", msg)
}

// Error prints an error message in red.
func (p *Printer) Error(msg string) {
	p.colored("31", msg)
}

// Warning prints a warning message in yellow.
func (p *Printer) Warning(msg string) {
	p.colored("33", msg)
}

func (p *Printer) colored(code, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[%sm%s\033[0m\n", code, msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}
