// Package protocol decodes tool calls from free-form model output. The wire
// format is a minimal tag microlanguage: a <tool> tag names the action and
// sibling tags supply parameters, in any order, surrounded by any amount of
// prose. Parsing is total: no input panics or errors, the worst outcome is
// nil.
package protocol

import "strings"

type Kind string

const (
	KindReadFile  Kind = "read_file"
	KindWriteFile Kind = "write_file"
	KindListFiles Kind = "list_files"
	KindBash      Kind = "bash"
	KindQuery     Kind = "query"
	KindSchema    Kind = "schema"
	KindSample    Kind = "sample"
	KindTables    Kind = "tables"
	KindAnswer    Kind = "answer"
	KindDone      Kind = "done"
	KindUnknown   Kind = "unknown"
)

var kinds = map[string]Kind{
	"read_file":  KindReadFile,
	"write_file": KindWriteFile,
	"list_files": KindListFiles,
	"bash":       KindBash,
	"query":      KindQuery,
	"schema":     KindSchema,
	"sample":     KindSample,
	"tables":     KindTables,
	"answer":     KindAnswer,
	"done":       KindDone,
}

// Call is one decoded action. Kind is drawn from a closed set; unrecognized
// tool names keep KindUnknown with the raw name so the executor can report
// them. Only the fields the tool uses are populated.
type Call struct {
	Kind    Kind
	Name    string
	Path    string
	Content string
	Command string
	SQL     string
	Table   string
	Value   string
}

// Terminal reports whether the call ends the agent loop.
func (c *Call) Terminal() bool {
	return c.Kind == KindDone || c.Kind == KindAnswer
}

// Parse extracts at most one tool call from raw model text. The first <tool>
// tag wins; text outside recognized tags is ignored; an unclosed tag reads as
// absent. Returns nil when no tool tag is present.
func Parse(text string) *Call {
	name, ok := extractTag(text, "tool")
	if !ok {
		return nil
	}
	name = strings.TrimSpace(name)
	kind, known := kinds[name]
	if !known {
		kind = KindUnknown
	}
	call := &Call{Kind: kind, Name: name}
	if v, ok := extractTag(text, "path"); ok {
		call.Path = strings.TrimSpace(v)
	}
	if v, ok := extractTag(text, "content"); ok {
		call.Content = strings.TrimSpace(v)
	}
	if v, ok := extractTag(text, "command"); ok {
		call.Command = strings.TrimSpace(v)
	}
	if v, ok := extractTag(text, "sql"); ok {
		call.SQL = strings.TrimSpace(v)
	}
	if v, ok := extractTag(text, "table"); ok {
		call.Table = strings.TrimSpace(v)
	}
	if v, ok := extractTag(text, "value"); ok {
		call.Value = strings.TrimSpace(v)
	}
	if call.Value == "" {
		// answer(value) may arrive as <answer>42</answer>
		if v, ok := extractTag(text, "answer"); ok {
			call.Value = strings.TrimSpace(v)
		}
	}
	return call
}

func extractTag(text, tag string) (string, bool) {
	open := "<" + tag + ">"
	i := strings.Index(text, open)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(open):]
	j := strings.Index(rest, "</"+tag+">")
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}
