package ports

import "github.com/campusqa/campusqa-cli/internal/domain"

// RenderUnit is an opaque handle to one displayed message. The turn
// controller owns the handle for the duration of a turn and relinquishes it
// when the turn reaches a terminal state.
type RenderUnit int

// Renderer is the display surface for conversation turns. Implementations
// must tolerate UpdateUnit being called repeatedly with growing content for
// the same unit.
type Renderer interface {
	CreateUnit(role domain.Role) RenderUnit
	UpdateUnit(unit RenderUnit, content string)
	ErrorUnit(unit RenderUnit, text string)
}
