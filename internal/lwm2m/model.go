package lwm2m

import (
	"fmt"
	"sort"
)

// Instance is one occurrence of an object on a device.
//
// Instances are immutable once built. A value change produces a new Instance
// through With, so a reader holding the old pointer keeps a consistent view.
type Instance struct {
	id        int
	resources map[int]Resource
}

// NewInstance builds an instance from its resources. Later duplicates of a
// resource id win.
func NewInstance(id int, resources ...Resource) *Instance {
	m := make(map[int]Resource, len(resources))
	for _, r := range resources {
		m[r.ID] = r
	}
	return &Instance{id: id, resources: m}
}

// ID returns the instance id.
func (i *Instance) ID() int {
	return i.id
}

// Resource returns the resource with the given id.
func (i *Instance) Resource(id int) (Resource, bool) {
	r, ok := i.resources[id]
	return r, ok
}

// Len returns the number of resources held.
func (i *Instance) Len() int {
	return len(i.resources)
}

// Resources returns the resources ordered by id.
func (i *Instance) Resources() []Resource {
	out := make([]Resource, 0, len(i.resources))
	for _, r := range i.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// With returns a copy of the instance with r inserted or replaced.
// The receiver is left untouched.
func (i *Instance) With(r Resource) *Instance {
	m := make(map[int]Resource, len(i.resources)+1)
	for k, v := range i.resources {
		m[k] = v
	}
	m[r.ID] = r
	return &Instance{id: i.id, resources: m}
}

// ModelObject holds the instances of one object id plus the instance paths
// announced at registration whose values have not been read yet.
type ModelObject struct {
	ID        int
	Instances map[int]*Instance
	pending   map[PathKey]struct{}
}

func newModelObject(id int) *ModelObject {
	return &ModelObject{
		ID:        id,
		Instances: make(map[int]*Instance),
		pending:   make(map[PathKey]struct{}),
	}
}

// Model is the per-session resource tree.
//
// Thread Safety:
//   - Model is not safe for concurrent mutation. The owning session serialises
//     access; readers may keep Instance pointers obtained under that lock.
type Model struct {
	objects map[int]*ModelObject
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{objects: make(map[int]*ModelObject)}
}

func (m *Model) object(id int) *ModelObject {
	obj, ok := m.objects[id]
	if !ok {
		obj = newModelObject(id)
		m.objects[id] = obj
	}
	return obj
}

// Upsert inserts or replaces a single resource value, creating the enclosing
// object and instance when absent.
//
// Returns the prior resource and whether one existed. Upsert never triggers
// extraction or publishing.
func (m *Model) Upsert(objectID, instanceID int, r Resource) (Resource, bool) {
	obj := m.object(objectID)
	inst, ok := obj.Instances[instanceID]
	if !ok {
		obj.Instances[instanceID] = NewInstance(instanceID, r)
		return Resource{}, false
	}
	prior, existed := inst.Resource(r.ID)
	obj.Instances[instanceID] = inst.With(r)
	return prior, existed
}

// Replace swaps the resource at path for r by rebuilding its instance.
//
// Unlike Upsert, the object and instance must already exist: a value change
// for an instance the model has never seen is reported as ErrObjectNotFound
// or ErrInstanceNotFound.
func (m *Model) Replace(path PathKey, r Resource) (Resource, bool, error) {
	if !path.IsResource() {
		return Resource{}, false, fmt.Errorf("%w: %s", ErrNotResourcePath, path)
	}
	obj, ok := m.objects[path.ObjectID]
	if !ok {
		return Resource{}, false, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
	}
	inst, ok := obj.Instances[path.InstanceID]
	if !ok {
		return Resource{}, false, fmt.Errorf("%w: %s", ErrInstanceNotFound, path)
	}

	r.ID = path.ResourceID
	prior, existed := inst.Resource(path.ResourceID)
	obj.Instances[path.InstanceID] = inst.With(r)
	return prior, existed, nil
}

// Resource returns the stored resource at a concrete path.
func (m *Model) Resource(path PathKey) (Resource, bool) {
	if !path.IsResource() {
		return Resource{}, false
	}
	inst := m.Instance(path.Instance())
	if inst == nil {
		return Resource{}, false
	}
	return inst.Resource(path.ResourceID)
}

// Instance returns the instance at an instance path, or nil.
func (m *Model) Instance(path PathKey) *Instance {
	obj, ok := m.objects[path.ObjectID]
	if !ok {
		return nil
	}
	return obj.Instances[path.InstanceID]
}

// Lookup returns the rendered value at a fully specified path.
// Any missing segment, or a resource without a value, reports false.
func (m *Model) Lookup(path PathKey) (string, bool) {
	r, ok := m.Resource(path)
	if !ok || !r.HasValue() {
		return "", false
	}
	return r.Render(), true
}

// Has reports whether a value is stored at path.
func (m *Model) Has(path PathKey) bool {
	_, ok := m.Lookup(path)
	return ok
}

// AddPending records an instance path announced at registration.
func (m *Model) AddPending(path PathKey) {
	m.object(path.ObjectID).pending[path.Instance()] = struct{}{}
}

// ResolvePending clears a pending instance path. It reports whether the
// path was pending.
func (m *Model) ResolvePending(path PathKey) bool {
	obj, ok := m.objects[path.ObjectID]
	if !ok {
		return false
	}
	key := path.Instance()
	if _, ok := obj.pending[key]; !ok {
		return false
	}
	delete(obj.pending, key)
	return true
}

// PendingCount returns the number of unresolved discovery paths.
func (m *Model) PendingCount() int {
	n := 0
	for _, obj := range m.objects {
		n += len(obj.pending)
	}
	return n
}

// ClearPending drops every pending path and returns them, ordered.
func (m *Model) ClearPending() []PathKey {
	var out []PathKey
	for _, obj := range m.objects {
		for p := range obj.pending {
			out = append(out, p)
		}
		obj.pending = make(map[PathKey]struct{})
	}
	SortPaths(out)
	return out
}

// InstanceRef pairs an instance with its object id.
type InstanceRef struct {
	ObjectID int
	Instance *Instance
}

// Instances returns every instance ordered by object then instance id.
// The returned instances are immutable and safe to read without the session lock.
func (m *Model) Instances() []InstanceRef {
	var out []InstanceRef
	for oid, obj := range m.objects {
		for _, inst := range obj.Instances {
			out = append(out, InstanceRef{ObjectID: oid, Instance: inst})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].ObjectID != out[b].ObjectID {
			return out[a].ObjectID < out[b].ObjectID
		}
		return out[a].Instance.ID() < out[b].Instance.ID()
	})
	return out
}

// SortPaths orders keys by object, instance, resource.
func SortPaths(paths []PathKey) {
	sort.Slice(paths, func(a, b int) bool {
		pa, pb := paths[a], paths[b]
		if pa.ObjectID != pb.ObjectID {
			return pa.ObjectID < pb.ObjectID
		}
		if pa.InstanceID != pb.InstanceID {
			return pa.InstanceID < pb.InstanceID
		}
		return pa.ResourceID < pb.ResourceID
	})
}
