package skeleton

import "sync"

// BoneRole is an abstract humanoid bone independent of the model's naming.
type BoneRole int

const (
	RoleRoot BoneRole = iota
	RoleHips
	RoleSpine
	RoleChest
	RoleNeck
	RoleHead
	RoleLeftEye
	RoleRightEye
	RoleLeftShoulder
	RoleLeftUpperArm
	RoleLeftLowerArm
	RoleLeftHand
	RoleRightShoulder
	RoleRightUpperArm
	RoleRightLowerArm
	RoleRightHand
	RoleLeftUpperLeg
	RoleLeftLowerLeg
	RoleLeftFoot
	RoleRightUpperLeg
	RoleRightLowerLeg
	RoleRightFoot

	roleCount
)

var roleNames = [roleCount]string{
	"root", "hips", "spine", "chest", "neck", "head", "leftEye", "rightEye",
	"leftShoulder", "leftUpperArm", "leftLowerArm", "leftHand",
	"rightShoulder", "rightUpperArm", "rightLowerArm", "rightHand",
	"leftUpperLeg", "leftLowerLeg", "leftFoot",
	"rightUpperLeg", "rightLowerLeg", "rightFoot",
}

func (r BoneRole) String() string {
	if r < 0 || r >= roleCount {
		return "unknown"
	}
	return roleNames[r]
}

// Roles returns every role in declaration order.
func Roles() []BoneRole {
	out := make([]BoneRole, roleCount)
	for i := range out {
		out[i] = BoneRole(i)
	}
	return out
}

// Convention is a skeleton naming scheme.
type Convention int

const (
	// ConventionStandard uses humanoid English names ("Hips", "LeftUpperArm").
	ConventionStandard Convention = iota
	// ConventionLocalized uses Japanese MMD names ("上半身", "左ひじ").
	ConventionLocalized
)

func (c Convention) String() string {
	switch c {
	case ConventionLocalized:
		return "localized"
	default:
		return "standard"
	}
}

// DetectionThreshold is the number of matching names a convention must exceed to be chosen.
const DetectionThreshold = 10

var conventionNames = map[Convention][roleCount]string{
	ConventionStandard: {
		"Root", "Hips", "Spine", "Chest", "Neck", "Head", "LeftEye", "RightEye",
		"LeftShoulder", "LeftUpperArm", "LeftLowerArm", "LeftHand",
		"RightShoulder", "RightUpperArm", "RightLowerArm", "RightHand",
		"LeftUpperLeg", "LeftLowerLeg", "LeftFoot",
		"RightUpperLeg", "RightLowerLeg", "RightFoot",
	},
	ConventionLocalized: {
		"全ての親", "下半身", "上半身", "上半身2", "首", "頭", "左目", "右目",
		"左肩", "左腕", "左ひじ", "左手首",
		"右肩", "右腕", "右ひじ", "右手首",
		"左足", "左ひざ", "左足首",
		"右足", "右ひざ", "右足首",
	},
}

// conventionOrder fixes tie-breaking and fallback order.
var conventionOrder = []Convention{ConventionStandard, ConventionLocalized}

// BoneName returns the node name a convention uses for role.
func (c Convention) BoneName(role BoneRole) string {
	names, ok := conventionNames[c]
	if !ok || role < 0 || role >= roleCount {
		return ""
	}
	return names[role]
}

// DetectConvention counts the adapter's node names per convention and returns the
// convention with the most hits if it clears DetectionThreshold, else ConventionStandard.
func DetectConvention(a Adapter) (Convention, map[Convention]int) {
	lookup := make(map[string][]Convention)
	for _, c := range conventionOrder {
		for _, n := range conventionNames[c] {
			lookup[n] = append(lookup[n], c)
		}
	}

	hits := make(map[Convention]int, len(conventionOrder))
	a.Walk(func(_ NodeID, name string) bool {
		for _, c := range lookup[name] {
			hits[c]++
		}
		return true
	})

	best, bestHits := ConventionStandard, 0
	for _, c := range conventionOrder {
		if hits[c] > bestHits {
			best, bestHits = c, hits[c]
		}
	}
	if bestHits <= DetectionThreshold {
		return ConventionStandard, hits
	}
	return best, hits
}

// Resolver maps roles to node handles for one adapter. Handles are cached per
// adapter generation and rebuilt when the hierarchy changes.
type Resolver struct {
	mu         sync.Mutex
	adapter    Adapter
	convention Convention
	hits       map[Convention]int
	handles    map[BoneRole]NodeID
	generation uint64
}

func NewResolver(a Adapter) *Resolver {
	r := &Resolver{adapter: a}
	r.rebuild()
	return r
}

func (r *Resolver) rebuild() {
	r.convention, r.hits = DetectConvention(r.adapter)
	r.handles = make(map[BoneRole]NodeID, roleCount)
	r.generation = r.adapter.Generation()

	for _, role := range Roles() {
		if id, ok := r.adapter.FindBone(r.convention.BoneName(role)); ok {
			r.handles[role] = id
			continue
		}
		// partial rigs sometimes mix conventions
		for _, c := range conventionOrder {
			if c == r.convention {
				continue
			}
			if id, ok := r.adapter.FindBone(c.BoneName(role)); ok {
				r.handles[role] = id
				break
			}
		}
	}
}

func (r *Resolver) refresh() {
	if r.adapter.Generation() != r.generation {
		r.rebuild()
	}
}

// Resolve returns the node playing role, if any.
func (r *Resolver) Resolve(role BoneRole) (NodeID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh()
	id, ok := r.handles[role]
	return id, ok
}

func (r *Resolver) Convention() Convention {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh()
	return r.convention
}

// Hits returns the per-convention match counts from the last detection pass.
func (r *Resolver) Hits() map[Convention]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh()
	out := make(map[Convention]int, len(r.hits))
	for k, v := range r.hits {
		out[k] = v
	}
	return out
}

// Invalidate forces the next lookup to redo detection.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuild()
}
