package viewer

import (
	"github.com/use-agent/pdfview/events"
	"github.com/use-agent/pdfview/provider"
)

// InstanceHandle is the frozen facade handed to external callers. It
// exposes only methods; none of the instance internals are reachable
// through it.
type InstanceHandle struct {
	inst *Instance
}

func (h *InstanceHandle) InstanceID() string { return h.inst.InstanceID() }
func (h *InstanceHandle) ContainerID() string { return h.inst.ContainerID() }
func (h *InstanceHandle) CurrentPage() int { return h.inst.CurrentPage() }
func (h *InstanceHandle) TotalPages() int { return h.inst.TotalPages() }
func (h *InstanceHandle) CurrentScale() float64 { return h.inst.CurrentScale() }
func (h *InstanceHandle) IsReady() bool { return h.inst.IsReady() }
func (h *InstanceHandle) IsDestroyed() bool { return h.inst.IsDestroyed() }
func (h *InstanceHandle) Metadata() map[string]string { return h.inst.Metadata() }

// Document exposes the underlying provider document, read-only by
// convention.
func (h *InstanceHandle) Document() provider.Document { return h.inst.doc }

func (h *InstanceHandle) GoToPage(n int) error { return h.inst.GoToPage(n) }
func (h *InstanceHandle) NextPage() error { return h.inst.NextPage() }
func (h *InstanceHandle) PreviousPage() error { return h.inst.PreviousPage() }
func (h *InstanceHandle) FirstPage() error { return h.inst.FirstPage() }
func (h *InstanceHandle) LastPage() error { return h.inst.LastPage() }
func (h *InstanceHandle) ZoomIn() float64 { return h.inst.ZoomIn() }
func (h *InstanceHandle) ZoomOut() float64 { return h.inst.ZoomOut() }
func (h *InstanceHandle) SetZoom(s float64) float64 { return h.inst.SetZoom(s) }
func (h *InstanceHandle) FitWidth() float64 { return h.inst.FitWidth() }
func (h *InstanceHandle) FitPage() float64 { return h.inst.FitPage() }
func (h *InstanceHandle) Rotate(deg int) { h.inst.Rotate(deg) }
func (h *InstanceHandle) SetScrollTop(y float64) { h.inst.SetScrollTop(y) }
func (h *InstanceHandle) Destroy() { h.inst.Destroy() }
func (h *InstanceHandle) Stats() InstanceStats { return h.inst.Stats() }

// Events returns the event-subscription facade.
func (h *InstanceHandle) Events() EventsFacade {
	return EventsFacade{bus: h.inst.bus}
}

// Annotations returns the instance's annotation service, or nil when none
// was configured.
func (h *InstanceHandle) Annotations() AnnotationService { return h.inst.opts.Annotations }

// Search returns the instance's search service, or nil when text handling
// is disabled.
func (h *InstanceHandle) Search() SearchService { return h.inst.search }

// Download returns the instance's download service, or nil when none was
// configured.
func (h *InstanceHandle) Download() DownloadService { return h.inst.opts.Download }

// EventsFacade narrows the bus to subscription management.
type EventsFacade struct {
	bus *events.Bus
}

func (f EventsFacade) On(t events.Type, h events.Handler) int { return f.bus.On(t, h) }
func (f EventsFacade) Off(t events.Type, id int) { f.bus.Off(t, id) }
func (f EventsFacade) RemoveAll() { f.bus.RemoveAll() }
