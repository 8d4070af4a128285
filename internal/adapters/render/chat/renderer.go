package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
)

// UnitCreatedMsg announces a new transcript entry.
type UnitCreatedMsg struct {
	Unit ports.RenderUnit
	Role domain.Role
}

// UnitUpdatedMsg carries the full content snapshot for an entry.
type UnitUpdatedMsg struct {
	Unit    ports.RenderUnit
	Content string
}

// UnitErroredMsg marks an entry as failed with a user-facing reason.
type UnitErroredMsg struct {
	Unit ports.RenderUnit
	Text string
}

// Renderer bridges the turn controller to a running bubbletea program.
// The controller runs on its own goroutine, so every render call crosses
// into the program via Send rather than touching the model directly.
type Renderer struct {
	mu   sync.Mutex
	next int
	send func(tea.Msg)
}

var _ ports.Renderer = (*Renderer)(nil)

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Attach connects the renderer to a started program. Render calls made
// before Attach are dropped.
func (r *Renderer) Attach(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.send = p.Send
}

func (r *Renderer) CreateUnit(role domain.Role) ports.RenderUnit {
	r.mu.Lock()
	unit := ports.RenderUnit(r.next)
	r.next++
	send := r.send
	r.mu.Unlock()

	if send != nil {
		send(UnitCreatedMsg{Unit: unit, Role: role})
	}
	return unit
}

func (r *Renderer) UpdateUnit(unit ports.RenderUnit, content string) {
	r.mu.Lock()
	send := r.send
	r.mu.Unlock()

	if send != nil {
		send(UnitUpdatedMsg{Unit: unit, Content: content})
	}
}

func (r *Renderer) ErrorUnit(unit ports.RenderUnit, text string) {
	r.mu.Lock()
	send := r.send
	r.mu.Unlock()

	if send != nil {
		send(UnitErroredMsg{Unit: unit, Text: text})
	}
}
