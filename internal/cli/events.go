package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"vozchat/internal/domain"
)

// eventPrinter writes session events to a terminal, one line each.
type eventPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	format string
}

func newEventPrinter(out io.Writer, format string) *eventPrinter {
	return &eventPrinter{out: out, format: format}
}

func (p *eventPrinter) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	p.emit("session", map[string]any{"state": state, "reason": reason},
		func() string { return fmt.Sprintf("· %s (%s)", state, reason) })
}

func (p *eventPrinter) MessageAppended(message domain.ChatMessage) {
	p.emit("message", message, func() string { return bubble(message) })
}

func (p *eventPrinter) HistoryReset(messages []domain.ChatMessage) {
	p.emit("history", messages, func() string {
		text := "── conversación nueva ──"
		for _, message := range messages {
			text += "\n" + bubble(message)
		}
		return text
	})
}

func (p *eventPrinter) PlaybackChanged(active bool) {
	p.emit("playback", map[string]bool{"active": active}, func() string {
		if active {
			return "♪ reproduciendo"
		}
		return "♪ fin"
	})
}

func (p *eventPrinter) SessionError(code domain.ErrorCode, detail string) {
	p.emit("error", map[string]string{"code": string(code), "detail": detail},
		func() string { return fmt.Sprintf("! %s: %s", code, detail) })
}

func (p *eventPrinter) emit(kind string, payload any, text func() string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.format == "json" {
		b, err := json.Marshal(map[string]any{"event": kind, "data": payload})
		if err != nil {
			return
		}
		fmt.Fprintln(p.out, string(b))
		return
	}
	fmt.Fprintln(p.out, text())
}

func bubble(message domain.ChatMessage) string {
	if message.Origin == domain.OriginSent {
		return "  tú › " + message.Text
	}
	return "María › " + message.Text
}
