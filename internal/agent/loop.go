// Package agent drives one benchmark conversation: prompt the model, parse
// at most one tool call per turn, execute it, feed the observation back, and
// stop on a terminal action or when the turn budget runs out.
package agent

import (
	"context"
	"fmt"

	"github.com/signalnine/archbench/internal/gateway"
	"github.com/signalnine/archbench/internal/protocol"
)

// Caller is the slice of the model gateway the loop needs.
type Caller interface {
	Call(ctx context.Context, system string, messages []gateway.Message, model string) (*gateway.Response, error)
}

// Executor applies one parsed tool call to the workspace.
type Executor interface {
	Execute(ctx context.Context, call *protocol.Call) (obs string, terminal bool)
}

type Options struct {
	SystemPrompt string
	TaskPrompt   string
	Model        string
	MaxTurns     int
	Window       int
	Caller       Caller
	Executor     Executor
}

type Outcome struct {
	Turns            int
	Terminal         *protocol.Call
	MaxTurnsExceeded bool
	Usage            gateway.Usage
	Conversation     []gateway.Message
}

const correctiveTurn = "No tool call found in your reply. Respond with exactly one tool call " +
	"using the tag format, e.g. <tool>read_file</tool><path>FILE</path>. " +
	"Finish with <tool>done</tool> when the work is complete."

// Run executes the loop. It issues at most MaxTurns model calls; a turn with
// no parseable tool call consumes its slot and gets a corrective reply. The
// loop itself never retries and never delays; both belong to the gateway.
// The returned outcome is valid even when err is non-nil, so callers can
// account for tokens spent before the failure.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	conv := []gateway.Message{{Role: "user", Content: opts.TaskPrompt}}
	out := &Outcome{}
	for turn := 1; turn <= opts.MaxTurns; turn++ {
		resp, err := opts.Caller.Call(ctx, opts.SystemPrompt, Window(conv, opts.Window), opts.Model)
		if err != nil {
			out.Conversation = conv
			return out, fmt.Errorf("model call on turn %d: %w", turn, err)
		}
		out.Turns = turn
		out.Usage.Add(resp.Usage)
		conv = append(conv, gateway.Message{Role: "assistant", Content: resp.Content})

		call := protocol.Parse(resp.Content)
		if call == nil {
			conv = append(conv, gateway.Message{Role: "user", Content: correctiveTurn})
			continue
		}

		obs, terminal := opts.Executor.Execute(ctx, call)
		if terminal {
			out.Terminal = call
			out.Conversation = conv
			return out, nil
		}
		conv = append(conv, gateway.Message{Role: "user", Content: obs})
	}
	out.MaxTurnsExceeded = true
	out.Conversation = conv
	return out, nil
}

// Window bounds a conversation to the first message plus the last keep
// messages. The conversation itself always grows monotonically; only the
// gateway request is windowed.
func Window(messages []gateway.Message, keep int) []gateway.Message {
	if keep <= 0 || len(messages) <= keep+1 {
		return messages
	}
	start := len(messages) - keep
	if start < 1 {
		start = 1
	}
	out := make([]gateway.Message, 0, keep+1)
	out = append(out, messages[0])
	out = append(out, messages[start:]...)
	return out
}
