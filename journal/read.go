package journal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rustyeddy/bridge/command"
)

// Entry is one line of the log. Cmd is only valid when Err is nil; lines
// written by other tools may not parse.
type Entry struct {
	Line string
	Cmd  command.Command
	Err  error
}

// ReadAll reads every non-blank line of the log at path. It takes no lock
// and may run alongside a writer.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open command log %s: %w", path, err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd, err := command.Parse(line)
		out = append(out, Entry{Line: line, Cmd: cmd, Err: err})
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read command log %s: %w", path, err)
	}
	return out, nil
}

// Tail returns at most the last n entries.
func Tail(path string, n int) ([]Entry, error) {
	all, err := ReadAll(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}
