package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/config"
)

var (
	logsFollow     bool
	logsLines      int
	logsSince      string
	logsConnection string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the dittosmb server logs.

Reads logging.output when it is a file path, otherwise the daemon log file
that 'dittosmb start' writes to in background mode.

Examples:
  # Show last 100 lines (default)
  dittosmb logs

  # Follow logs in real-time
  dittosmb logs -f

  # Everything one connection logged
  dittosmb logs --connection 3f1c9a2e-...

  # Show logs since a specific time
  dittosmb logs --since "2024-01-15T10:00:00Z"`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
	logsCmd.Flags().StringVar(&logsConnection, "connection", "", "Only lines logged for this connection id")
}

// logFilter selects the lines logs prints.
type logFilter struct {
	since        time.Time
	connectionID string
}

func (f logFilter) match(line string) bool {
	if f.connectionID != "" &&
		!strings.Contains(line, logger.KeyConnectionID+"="+f.connectionID) &&
		!strings.Contains(line, `"`+logger.KeyConnectionID+`":"`+f.connectionID+`"`) {
		return false
	}
	if !f.since.IsZero() {
		if t := extractTimestamp(line); !t.IsZero() && t.Before(f.since) {
			return false
		}
	}
	return true
}

func runLogs(cmd *cobra.Command, args []string) error {
	logPath, err := resolveLogFile()
	if err != nil {
		return err
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nThe server may not have started yet or is logging elsewhere", logPath)
	}

	filter := logFilter{connectionID: logsConnection}
	if logsSince != "" {
		filter.since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if logsFollow {
		return followLogs(out, logPath, logsLines, filter)
	}
	return showLogs(out, logPath, logsLines, filter)
}

func resolveLogFile() (string, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	switch out := cfg.Logging.Output; out {
	case "stdout", "stderr":
		// Foreground servers log to the terminal; daemons redirect it here.
		return GetDefaultLogFile(), nil
	default:
		return out, nil
	}
}

// showLogs prints the last n matching lines of the file.
func showLogs(w io.Writer, path string, n int, filter logFilter) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	lines, err := tailLines(file, n, filter)
	if err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// tailLines keeps a ring of the last n matching lines.
func tailLines(r io.Reader, n int, filter logFilter) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	ring := make([]string, 0, n)
	next := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !filter.match(line) {
			continue
		}
		if len(ring) < n {
			ring = append(ring, line)
			continue
		}
		ring[next] = line
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return append(ring[next:], ring[:next]...), nil
}

// followLogs prints the tail, then every matching line appended until
// interrupted.
func followLogs(w io.Writer, path string, initialLines int, filter logFilter) error {
	if err := showLogs(w, path, initialLines, filter); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of log file: %w", err)
	}
	reader := bufio.NewReader(file)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintf(os.Stderr, "Following %s (Ctrl+C to stop)...\n", path)

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			for {
				chunk, err := reader.ReadString('\n')
				partial += chunk
				if err != nil {
					// Incomplete line; the rest arrives with the next write.
					break
				}
				line := strings.TrimRight(partial, "\r\n")
				partial = ""
				if filter.match(line) {
					_, _ = fmt.Fprintln(w, line)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// textTimeLayout is the timestamp of the text log format, in local time.
const textTimeLayout = "2006-01-02 15:04:05"

// extractTimestamp finds the time of a log line in either log format:
// "[2006-01-02 15:04:05] ..." for text or a "time" field for JSON.
func extractTimestamp(line string) time.Time {
	if len(line) > len(textTimeLayout)+1 && line[0] == '[' && line[len(textTimeLayout)+1] == ']' {
		if t, err := time.ParseInLocation(textTimeLayout, line[1:len(textTimeLayout)+1], time.Local); err == nil {
			return t
		}
	}

	const timeKey = `"time":"`
	if idx := strings.Index(line, timeKey); idx >= 0 {
		rest := line[idx+len(timeKey):]
		if end := strings.IndexByte(rest, '"'); end > 0 {
			if t, err := time.Parse(time.RFC3339Nano, rest[:end]); err == nil {
				return t
			}
		}
	}

	return time.Time{}
}
