package polyinject

import (
	"fmt"

	"github.com/jward/polyinject/internal/jsast"
)

// dispatch delivers r to every provider in registration order. Dispatch
// stops after a provider returns Handled or removes or replaces the anchor.
func (p *Plugin) dispatch(fs *fileState, r Report, anchor *jsast.Path) error {
	if anchor.Removed() {
		return nil
	}
	p.logger.Debug("usage", "file", fs.unit.Path, "line", anchor.Line(), "report", r.String())

	usage := Usage{Report: r, Line: anchor.Line(), Col: anchor.Col()}
	for _, rp := range p.providers {
		out, err := rp.call(r, fs.utils(rp.index), anchor)
		if err != nil {
			return fmt.Errorf("polyinject: %s:%d:%d: provider %q: %w", fs.unit.Path, usage.Line, usage.Col, rp.name, err)
		}
		if out == Handled || anchor.Removed() {
			usage.HandledBy = rp.name
			break
		}
	}
	fs.usages = append(fs.usages, usage)
	return nil
}
