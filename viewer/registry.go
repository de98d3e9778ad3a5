// Package viewer hosts the multi-instance registry and the public facade.
// The registry is process-wide state: it guarantees at most one viewer per
// container, monotonically unique instance ids, and refuses all work after
// global teardown.
package viewer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/use-agent/pdfview/models"
)

// Registry maps instance ids and container ids to live viewer instances.
type Registry struct {
	mu         sync.Mutex
	instances  map[string]*Instance
	containers map[string]string // containerID -> instanceID
	nextID     atomic.Int64
	tornDown   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		instances:  make(map[string]*Instance),
		containers: make(map[string]string),
	}
}

// Load creates a viewer instance for the given options and returns its
// facade handle.
func (r *Registry) Load(opts Options) (*InstanceHandle, error) {
	if opts.ContainerID == "" {
		return nil, models.NewViewerError(models.ErrCodeInvalidInput, "containerId is required", nil)
	}

	r.mu.Lock()
	if r.tornDown {
		r.mu.Unlock()
		return nil, models.NewViewerError(models.ErrCodeTornDown, "viewer system is destroyed", nil)
	}
	if owner, busy := r.containers[opts.ContainerID]; busy {
		r.mu.Unlock()
		return nil, models.NewViewerError(models.ErrCodeContainerBusy,
			fmt.Sprintf("container %q already hosts viewer %s", opts.ContainerID, owner), nil)
	}
	id := fmt.Sprintf("pv-%d", r.nextID.Add(1))
	// Reserve the container before the (slow) load so concurrent loads
	// into the same container fail fast.
	r.containers[opts.ContainerID] = id
	r.mu.Unlock()

	inst, err := newInstance(id, opts)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		delete(r.containers, opts.ContainerID)
		return nil, err
	}
	if r.tornDown {
		// Torn down while loading; the instance must not outlive the
		// registry.
		delete(r.containers, opts.ContainerID)
		inst.Destroy()
		return nil, models.NewViewerError(models.ErrCodeTornDown, "viewer system is destroyed", nil)
	}
	r.instances[id] = inst
	return &InstanceHandle{inst: inst}, nil
}

// GetByInstance returns the handle for an instance id.
func (r *Registry) GetByInstance(id string) (*InstanceHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tornDown {
		return nil, models.NewViewerError(models.ErrCodeTornDown, "viewer system is destroyed", nil)
	}
	inst, ok := r.instances[id]
	if !ok {
		return nil, models.NewViewerError(models.ErrCodeNotFound,
			fmt.Sprintf("unknown instance %q", id), nil)
	}
	return &InstanceHandle{inst: inst}, nil
}

// GetByContainer returns the handle for the viewer hosted by a container.
func (r *Registry) GetByContainer(containerID string) (*InstanceHandle, error) {
	r.mu.Lock()
	id, ok := r.containers[containerID]
	r.mu.Unlock()
	if !ok {
		return nil, models.NewViewerError(models.ErrCodeNotFound,
			fmt.Sprintf("no viewer in container %q", containerID), nil)
	}
	return r.GetByInstance(id)
}

// All returns handles for every live instance.
func (r *Registry) All() []*InstanceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*InstanceHandle, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, &InstanceHandle{inst: inst})
	}
	return out
}

// Unload destroys an instance by id.
func (r *Registry) Unload(id string) error {
	r.mu.Lock()
	if r.tornDown {
		r.mu.Unlock()
		return models.NewViewerError(models.ErrCodeTornDown, "viewer system is destroyed", nil)
	}
	inst, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return models.NewViewerError(models.ErrCodeNotFound,
			fmt.Sprintf("unknown instance %q", id), nil)
	}
	delete(r.instances, id)
	delete(r.containers, inst.ContainerID())
	r.mu.Unlock()

	inst.Destroy()
	return nil
}

// UnloadByContainer destroys the viewer hosted by a container.
func (r *Registry) UnloadByContainer(containerID string) error {
	r.mu.Lock()
	id, ok := r.containers[containerID]
	r.mu.Unlock()
	if !ok {
		return models.NewViewerError(models.ErrCodeNotFound,
			fmt.Sprintf("no viewer in container %q", containerID), nil)
	}
	return r.Unload(id)
}

// UnloadAll destroys every instance but keeps the registry usable.
func (r *Registry) UnloadAll() {
	r.mu.Lock()
	insts := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	r.instances = make(map[string]*Instance)
	r.containers = make(map[string]string)
	r.mu.Unlock()

	for _, inst := range insts {
		inst.Destroy()
	}
}

// Destroy unloads everything and refuses all further work.
func (r *Registry) Destroy() {
	r.mu.Lock()
	if r.tornDown {
		r.mu.Unlock()
		return
	}
	r.tornDown = true
	r.mu.Unlock()
	r.UnloadAll()
}

// RegistryStats summarizes the registry for diagnostics.
type RegistryStats struct {
	Instances int             `json:"instances"`
	TornDown  bool            `json:"torn_down"`
	PerViewer []InstanceStats `json:"per_viewer"`
}

// Stats returns registry-wide diagnostics.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	insts := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	tornDown := r.tornDown
	r.mu.Unlock()

	s := RegistryStats{Instances: len(insts), TornDown: tornDown}
	for _, inst := range insts {
		s.PerViewer = append(s.PerViewer, inst.Stats())
	}
	return s
}

// --- package-level default registry ------------------------------------

var std = NewRegistry()

// Load creates a viewer in the default registry.
func Load(opts Options) (*InstanceHandle, error) { return std.Load(opts) }

// GetInstance looks an instance up in the default registry.
func GetInstance(id string) (*InstanceHandle, error) { return std.GetByInstance(id) }

// GetInstanceByContainer looks a container's viewer up in the default
// registry.
func GetInstanceByContainer(containerID string) (*InstanceHandle, error) {
	return std.GetByContainer(containerID)
}

// GetAllInstances lists every viewer in the default registry.
func GetAllInstances() []*InstanceHandle { return std.All() }

// Unload destroys a viewer in the default registry.
func Unload(id string) error { return std.Unload(id) }

// UnloadByContainer destroys a container's viewer in the default registry.
func UnloadByContainer(containerID string) error { return std.UnloadByContainer(containerID) }

// UnloadAll destroys every viewer in the default registry.
func UnloadAll() { std.UnloadAll() }

// Destroy tears the default registry down for good.
func Destroy() { std.Destroy() }

// Stats reports on the default registry.
func Stats() RegistryStats { return std.Stats() }
