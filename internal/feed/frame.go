package feed

import (
	"encoding/json"

	"github.com/lox/acehigh/internal/coach"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/session"
)

// FrameType identifies the payload of a Frame
type FrameType string

const (
	FrameSnapshot  FrameType = "snapshot"
	FrameNarration FrameType = "narration"
	FrameError     FrameType = "error"
	FramePhase     FrameType = "phase"
	FrameAdvice    FrameType = "advice"
)

// Frame is one message sent to feed clients
type Frame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PhaseData is the payload of a phase frame
type PhaseData struct {
	Phase   string              `json:"phase"`
	Hand    *session.HandResult `json:"hand,omitempty"`
	Outcome *game.GameStats     `json:"outcome,omitempty"`
}

// ErrorData is the payload of an error frame
type ErrorData struct {
	Message string `json:"message"`
}

// AdviceData is the payload of an advice frame
type AdviceData struct {
	Kind     coach.Kind `json:"kind"`
	Question string     `json:"question,omitempty"`
	Text     string     `json:"text,omitempty"`
	Action   string     `json:"action,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func newFrame(t FrameType, v any) (*Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: t, Data: data}, nil
}

// eventFrame converts an orchestrator event. Events clients have no use for
// return nil.
func eventFrame(ev session.Event) (*Frame, error) {
	switch ev.Kind {
	case session.EventNarration:
		return newFrame(FrameNarration, ev.Narration)
	case session.EventPhase:
		return newFrame(FramePhase, PhaseData{Phase: ev.Phase.String(), Hand: ev.Hand})
	case session.EventNavigate:
		if ev.Outcome == nil {
			return nil, nil
		}
		return newFrame(FramePhase, PhaseData{Phase: ev.Outcome.Phase.String(), Outcome: &ev.Outcome.Stats})
	case session.EventError:
		if ev.Err == nil {
			return nil, nil
		}
		return newFrame(FrameError, ErrorData{Message: ev.Err.Error()})
	default:
		return nil, nil
	}
}

func adviceFrame(a coach.Advice) (*Frame, error) {
	data := AdviceData{Kind: a.Kind, Question: a.Question, Text: a.Text, Action: a.Action}
	if a.Err != nil {
		data.Error = a.Err.Error()
	}
	return newFrame(FrameAdvice, data)
}
