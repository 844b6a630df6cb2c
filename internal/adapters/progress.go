package adapters

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/types"
)

// LookupProgress renders a single rewriting status line. Safe for
// concurrent use; a disabled progress swallows every event.
type LookupProgress struct {
	writer    io.Writer
	message   string
	enabled   bool
	mu        sync.Mutex
	total     int
	current   int
	lastWidth int
}

func NewLookupProgress(writer io.Writer, message string, enabled bool) *LookupProgress {
	return &LookupProgress{writer: writer, message: message, enabled: enabled}
}

func (p *LookupProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.current = 0
	p.render()
}

func (p *LookupProgress) Advance(_ types.PackageIdentity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < p.total {
		p.current++
	}
	p.render()
}

func (p *LookupProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || p.lastWidth == 0 {
		return
	}
	_, _ = fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", p.lastWidth))
	p.lastWidth = 0
}

// render must be called with mu held.
func (p *LookupProgress) render() {
	if !p.enabled || p.total == 0 {
		return
	}
	line := fmt.Sprintf("%s: %d/%d", p.message, p.current, p.total)
	width := len(line)
	if width < p.lastWidth {
		line += strings.Repeat(" ", p.lastWidth-width)
	}
	p.lastWidth = width
	_, _ = fmt.Fprint(p.writer, "\r"+line)
}

var _ ports.ProgressPort = (*LookupProgress)(nil)
