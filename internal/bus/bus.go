// Package bus provides the append-only conversation log for one
// evaluation run. Every manager and agent message flows through a Bus,
// which assigns the strictly increasing sequence numbers that define the
// total order negotiation replays in. The log is the audit trail: it is
// never truncated or rewritten.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/jury/internal/types"
)

// Bus is the append-only message log for a single run. A zero-value Bus
// is not usable; construct with New. Safe for concurrent posting.
type Bus struct {
	mu       sync.Mutex
	seq      int
	messages []types.Message
	now      func() time.Time
}

// New creates an empty bus. Sequence numbers start at 1.
func New() *Bus {
	return &Bus{now: time.Now}
}

// post appends a message, assigning its ID, sequence, and timestamp.
func (b *Bus) post(kind types.MessageKind, from, to types.Participant, text string, findings []types.Finding, delta float64) types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	msg := types.Message{
		ID:        uuid.New().String(),
		Kind:      kind,
		From:      from,
		To:        to,
		Text:      text,
		Sequence:  b.seq,
		Timestamp: b.now(),
		Findings:  findings,
		Delta:     delta,
	}
	b.messages = append(b.messages, msg)
	return msg
}

// PostTask records a manager task assignment to one agent.
func (b *Bus) PostTask(to types.AgentID, text string) types.Message {
	return b.post(types.MessageTaskAssignment, types.ParticipantManager, to.Participant(), text, nil, 0)
}

// PostFindings records a findings notification from one agent to a peer.
// The findings ride along so the receiver can apply its adjustment policy
// without parsing the text.
func (b *Bus) PostFindings(from, to types.AgentID, text string, findings []types.Finding) types.Message {
	return b.post(types.MessageFindings, from.Participant(), to.Participant(), text, findings, 0)
}

// PostAdjustment records an agent's response summarizing the delta it
// applied to its own score.
func (b *Bus) PostAdjustment(from, to types.AgentID, text string, delta float64) types.Message {
	return b.post(types.MessageAdjustment, from.Participant(), to.Participant(), text, nil, delta)
}

// PostAck records an acknowledgment that triggers no adjustment.
func (b *Bus) PostAck(from, to types.AgentID, text string) types.Message {
	return b.post(types.MessageAck, from.Participant(), to.Participant(), text, nil, 0)
}

// PostFailure records an analysis failure note from the manager.
func (b *Bus) PostFailure(about types.AgentID, text string) types.Message {
	return b.post(types.MessageFailure, types.ParticipantManager, types.ParticipantAll, text, nil, 0)
}

// PostBroadcast records the manager's final summary to all participants.
func (b *Bus) PostBroadcast(text string) types.Message {
	return b.post(types.MessageBroadcast, types.ParticipantManager, types.ParticipantAll, text, nil, 0)
}

// Log returns a copy of the full message sequence in order.
func (b *Bus) Log() []types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Len returns the number of messages posted so far.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}
