package skeleton

// Rig is what the motion engines consume: a scene graph plus its role resolver.
type Rig struct {
	Adapter
	resolver *Resolver
}

func NewRig(a Adapter) *Rig {
	return &Rig{Adapter: a, resolver: NewResolver(a)}
}

// Bone resolves a role to a node handle.
func (r *Rig) Bone(role BoneRole) (NodeID, bool) {
	return r.resolver.Resolve(role)
}

// BoneName returns the scene name of the node playing role, or "" when unresolved.
func (r *Rig) BoneName(role BoneRole) string {
	id, ok := r.Bone(role)
	if !ok {
		return ""
	}
	return r.Name(id)
}

func (r *Rig) Convention() Convention {
	return r.resolver.Convention()
}

func (r *Rig) Resolver() *Resolver {
	return r.resolver
}

// View returns a rig that reads and writes through a, sharing this rig's resolved handles.
// a must expose the same hierarchy, e.g. an overlay of pending writes.
func (r *Rig) View(a Adapter) *Rig {
	return &Rig{Adapter: a, resolver: r.resolver}
}

// Reload re-runs convention detection, e.g. after a new model was swapped into the same adapter.
func (r *Rig) Reload() {
	r.resolver.Invalidate()
}
