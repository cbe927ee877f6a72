// Package blendshape holds the shared morph-target weight cache.
package blendshape

import (
	"sort"
	"sync"
)

// ARKit-style face shapes used by the pose presets and the idle blink.
const (
	BrowDownLeft     = "browDownLeft"
	BrowDownRight    = "browDownRight"
	BrowInnerUp      = "browInnerUp"
	BrowOuterUpLeft  = "browOuterUpLeft"
	BrowOuterUpRight = "browOuterUpRight"
	CheekSquintLeft  = "cheekSquintLeft"
	CheekSquintRight = "cheekSquintRight"
	EyeBlinkLeft     = "eyeBlinkLeft"
	EyeBlinkRight    = "eyeBlinkRight"
	EyeLookUpLeft    = "eyeLookUpLeft"
	EyeLookUpRight   = "eyeLookUpRight"
	EyeSquintLeft    = "eyeSquintLeft"
	EyeSquintRight   = "eyeSquintRight"
	EyeWideLeft      = "eyeWideLeft"
	EyeWideRight     = "eyeWideRight"
	JawOpen          = "jawOpen"
	MouthFrownLeft   = "mouthFrownLeft"
	MouthFrownRight  = "mouthFrownRight"
	MouthFunnel      = "mouthFunnel"
	MouthPressLeft   = "mouthPressLeft"
	MouthPressRight  = "mouthPressRight"
	MouthPucker      = "mouthPucker"
	MouthSmileLeft   = "mouthSmileLeft"
	MouthSmileRight  = "mouthSmileRight"
)

// Sink receives final weights. The rendering engine implements it with its "set morph weight" primitive.
type Sink interface {
	SetMorphWeight(name string, weight float32)
}

// Cache maps blendshape name to its current weight. Every write is clamped to [0,1].
type Cache struct {
	mu      sync.RWMutex
	weights map[string]float32
}

func NewCache() *Cache {
	return &Cache{weights: make(map[string]float32)}
}

func (c *Cache) Set(name string, value float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weights[name] = Clamp(value)
}

func (c *Cache) Get(name string) float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weights[name]
}

// Reset zeroes the named shapes, or every shape when no names are given.
func (c *Cache) Reset(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(names) == 0 {
		for k := range c.weights {
			c.weights[k] = 0
		}
		return
	}
	for _, n := range names {
		c.weights[n] = 0
	}
}

func (c *Cache) Snapshot() map[string]float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float32, len(c.weights))
	for k, v := range c.weights {
		out[k] = v
	}
	return out
}

// Names returns the known shape names in sorted order.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.weights))
	for k := range c.weights {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Flush pushes every cached weight to the sink.
func (c *Cache) Flush(sink Sink) {
	if sink == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.weights {
		sink.SetMorphWeight(k, v)
	}
}

func Clamp(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Lerp moves from toward to by t, clamped.
func Lerp(from, to, t float32) float32 {
	return Clamp(from + (to-from)*t)
}
