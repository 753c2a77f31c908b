package llm

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rustyeddy/bridge/command"
)

// ParseReply extracts a command from a model reply. Replies may be a bare
// command line, a fenced block, or a JSON object carrying the command under
// "command" or "action".
func ParseReply(reply string) (command.Command, error) {
	text := stripFences(reply)
	if text == "" {
		return command.Command{}, fmt.Errorf("empty reply")
	}

	if strings.HasPrefix(text, "{") && gjson.Valid(text) {
		v := gjson.Get(text, "command")
		if !v.Exists() {
			v = gjson.Get(text, "action")
		}
		if v.String() == "" {
			return command.Command{}, fmt.Errorf("json reply has no command: %s", text)
		}
		text = v.String()
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "`\"'.")
		if line == "" {
			continue
		}
		cmd, err := command.ParseText(line)
		if err != nil {
			return command.Command{}, fmt.Errorf("parse reply %q: %w", line, err)
		}
		return cmd, nil
	}
	return command.Command{}, fmt.Errorf("empty reply")
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop an info string such as ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		if tag := strings.TrimSpace(s[:i]); tag == strings.ToLower(tag) && !strings.ContainsAny(tag, " \t") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
