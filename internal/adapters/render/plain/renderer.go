package plain

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
)

// Renderer streams turn output to a writer, typically stdout. Assistant
// content arrives as a growing snapshot, so only the suffix beyond what was
// already written goes out. When an update rewrites earlier text (citation
// cleanup can shrink the snapshot) the baseline advances silently and
// streaming resumes from the new snapshot.
type Renderer struct {
	w  io.Writer
	s  styles
	mu sync.Mutex

	units []*unit
}

type unit struct {
	role    domain.Role
	written string
	opened  bool
}

var _ ports.Renderer = (*Renderer)(nil)

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, s: newStyles()}
}

func (r *Renderer) CreateUnit(role domain.Role) ports.RenderUnit {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.units = append(r.units, &unit{role: role})
	return ports.RenderUnit(len(r.units) - 1)
}

func (r *Renderer) UpdateUnit(id ports.RenderUnit, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.unitFor(id)
	if u == nil {
		return
	}

	r.openUnit(u)

	if strings.HasPrefix(content, u.written) {
		fmt.Fprint(r.w, content[len(u.written):])
	}
	u.written = content
}

func (r *Renderer) ErrorUnit(id ports.RenderUnit, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.unitFor(id)
	if u == nil {
		return
	}

	r.openUnit(u)

	if u.written != "" {
		fmt.Fprintln(r.w)
	}
	fmt.Fprintln(r.w, r.s.errorText.Render(text))
}

func (r *Renderer) unitFor(id ports.RenderUnit) *unit {
	idx := int(id)
	if idx < 0 || idx >= len(r.units) {
		return nil
	}
	return r.units[idx]
}

func (r *Renderer) openUnit(u *unit) {
	if u.opened {
		return
	}
	u.opened = true

	label := r.s.assistantLabel.Render("助手")
	if u.role == domain.RoleUser {
		label = r.s.userLabel.Render("你")
	}
	fmt.Fprintf(r.w, "\n%s\n", label)
}
