package character

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/normanking/cortexmotion/internal/ik"
	"github.com/normanking/cortexmotion/internal/scheduler"
	"github.com/normanking/cortexmotion/internal/skeleton"
)

// body caches the rest pose and the handles the actions need. The rest pose is
// recaptured whenever the skeleton's generation changes.
type body struct {
	mu   sync.RWMutex
	rig  *skeleton.Rig
	rest map[skeleton.NodeID]skeleton.Transform
	gen  uint64
}

func newBody(rig *skeleton.Rig) *body {
	b := &body{rig: rig}
	b.refresh()
	return b
}

func (b *body) refresh() {
	gen := b.rig.Generation()
	b.mu.RLock()
	fresh := b.rest != nil && b.gen == gen
	b.mu.RUnlock()
	if fresh {
		return
	}

	var ids []skeleton.NodeID
	b.rig.Walk(func(id skeleton.NodeID, _ string) bool {
		ids = append(ids, id)
		return true
	})
	rest := make(map[skeleton.NodeID]skeleton.Transform, len(ids))
	for _, id := range ids {
		rest[id] = b.rig.Transform(id)
	}
	b.mu.Lock()
	b.rest, b.gen = rest, gen
	b.mu.Unlock()
}

func (b *body) restOf(id skeleton.NodeID) skeleton.Transform {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t, ok := b.rest[id]; ok {
		return t
	}
	return skeleton.Identity()
}

// restore writes the rest transform of every id into f.
func (b *body) restore(f *scheduler.Frame, ids []skeleton.NodeID) {
	for _, id := range ids {
		f.SetTransform(id, b.restOf(id))
	}
}

// entity is the node that carries the whole character: the root role, else the first node.
func (b *body) entity() (skeleton.NodeID, bool) {
	if id, ok := b.rig.Bone(skeleton.RoleRoot); ok {
		return id, true
	}
	first := skeleton.InvalidNode
	b.rig.Walk(func(id skeleton.NodeID, _ string) bool {
		first = id
		return false
	})
	return first, first != skeleton.InvalidNode
}

// lookNode is the head, or the entity when no head resolves.
func (b *body) lookNode() (skeleton.NodeID, bool) {
	if id, ok := b.rig.Bone(skeleton.RoleHead); ok {
		return id, true
	}
	return b.entity()
}

func (b *body) chainNodes(c *ik.Chain) []skeleton.NodeID {
	var ids []skeleton.NodeID
	for _, role := range c.Roles() {
		if id, ok := b.rig.Bone(role); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (b *body) boneTargets(ids []skeleton.NodeID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, scheduler.BoneTarget(b.rig.Name(id)))
	}
	return out
}

// entityRotation orients character-space directions into world space.
func (b *body) entityRotation() mgl64.Quat {
	id, ok := b.entity()
	if !ok {
		return mgl64.QuatIdent()
	}
	return b.rig.WorldTransform(id).Rotation
}
