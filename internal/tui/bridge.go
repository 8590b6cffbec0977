package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lox/acehigh/internal/coach"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/session"
)

// Sender delivers messages to a running program; *tea.Program satisfies it
type Sender interface {
	Send(msg tea.Msg)
}

// Snapshots is the published table state
type Snapshots interface {
	Subscribe(fn func(*game.GameSnapshot)) (unsubscribe func())
}

// Events are orchestrator notifications
type Events interface {
	Subscribe(fn func(session.Event)) (unsubscribe func())
}

// AdviceSource is the coach
type AdviceSource interface {
	Subscribe(fn func(coach.Advice)) (unsubscribe func())
}

// Bridge forwards snapshot, event and advice notifications into the program
type Bridge struct {
	program Sender
	unsubs  []func()
}

// NewBridge subscribes to every non-nil source and forwards to program
func NewBridge(program Sender, snapshots Snapshots, events Events, advice AdviceSource) *Bridge {
	b := &Bridge{program: program}
	if snapshots != nil {
		b.unsubs = append(b.unsubs, snapshots.Subscribe(func(s *game.GameSnapshot) {
			b.program.Send(SnapshotMsg{Snapshot: s})
		}))
	}
	if events != nil {
		b.unsubs = append(b.unsubs, events.Subscribe(func(ev session.Event) {
			b.program.Send(EventMsg{Event: ev})
		}))
	}
	if advice != nil {
		b.unsubs = append(b.unsubs, advice.Subscribe(func(a coach.Advice) {
			b.program.Send(AdviceMsg{Advice: a})
		}))
	}
	return b
}

// Close stops forwarding
func (b *Bridge) Close() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}
