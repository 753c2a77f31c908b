package llm

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/snapshot"
)

const systemPrompt = `You are a trading agent connected to a live terminal. You may only answer with one command from the list below, or NO_ACTION.

Available commands:
{{- range .Verbs }}
- {{ . }}
{{- end }}

Respond with ONLY the command to execute, or "NO_ACTION" if no action is needed.`

const userPrompt = `Account State:
- Balance: {{ printf "%.2f" .Snapshot.Account.Balance }}
- Equity: {{ printf "%.2f" .Snapshot.Account.Equity }}
- Free margin: {{ printf "%.2f" .Snapshot.Account.FreeMargin }}
- Margin level: {{ printf "%.2f" .Snapshot.Account.MarginLevel }}
- Open positions: {{ len .Snapshot.Positions }}{{ if .MaxPositions }} (max {{ .MaxPositions }}){{ end }}
{{- range .Snapshot.Positions }}
  - #{{ .Ticket }} {{ .Type }} {{ .Volume }} {{ .Symbol }} open={{ .OpenPrice }} sl={{ .SL }} tp={{ .TP }} profit={{ printf "%.2f" .Profit }}
{{- end }}

Current Market:
- Symbol: {{ .Snapshot.Symbol.Name }}
- Bid: {{ .Snapshot.Symbol.Bid }}
- Ask: {{ .Snapshot.Symbol.Ask }}
- Spread: {{ .Snapshot.Symbol.Spread }}
{{- if .History }}
- Recent mid prices (oldest first): {{ join .History }}
{{- end }}

Default volume: {{ .Volume }}`

// PromptInput is everything the prompt templates can see.
type PromptInput struct {
	Snapshot     snapshot.Snapshot
	History      []float64
	Volume       string
	MaxPositions int
}

var funcs = template.FuncMap{
	"join": func(v []float64) string {
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = fmt.Sprintf("%.5f", f)
		}
		return strings.Join(parts, ", ")
	},
}

var (
	systemTmpl = template.Must(template.New("system").Parse(systemPrompt))
	userTmpl   = template.Must(template.New("user").Funcs(funcs).Parse(userPrompt))
)

// BuildPrompt renders the system and user messages for one decision.
func BuildPrompt(in PromptInput) (system, user string, err error) {
	var verbs []string
	for _, v := range command.Verbs() {
		usage := string(v)
		kinds, _ := v.Args()
		for _, k := range kinds {
			usage += " <" + k.String() + ">"
		}
		verbs = append(verbs, usage)
	}

	var sb, ub bytes.Buffer
	if err := systemTmpl.Execute(&sb, struct{ Verbs []string }{verbs}); err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	if err := userTmpl.Execute(&ub, in); err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return sb.String(), ub.String(), nil
}
