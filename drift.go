/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	fieldPopulation = 11
	spawnBuffer     = 60
	despawnBuffer   = 220

	spriteSizeMin = 38
	spriteSizeMax = 96
	driftSpeedMin = 70
	driftSpeedMax = 150

	maxStep      = 32 * time.Millisecond
	flingSamples = 6
	maxFling     = 1800
	clickSpeed   = 35
	maxSpinBonus = 80
)

// Sprite is one drifting figure. Velocities are px/s, rotation in degrees.
type Sprite struct {
	ID      string  `json:"id"`
	Palette string  `json:"palette"`
	Size    float64 `json:"size"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Rot     float64 `json:"rot"`
	Grabbed bool    `json:"grabbed,omitempty"`

	vx, vy float64
	spin   float64

	curveStrength float64
	curveFreq     float64
	curvePhase    float64
	curveDir      float64

	age float64
}

type dragSample struct {
	x, y float64
	t    float64 // ms
}

// Field is a window into space: sprites enter from an edge, drift without
// friction and are replaced once they leave. Sprites can be grabbed and
// flung.
type Field struct {
	mu  sync.Mutex
	rng *rand.Rand

	w, h     float64
	palettes []string
	sprites  []*Sprite

	dragID  string
	offsetX float64
	offsetY float64
	samples []dragSample
}

func newField(rng *rand.Rand, palettes []string, w, h float64) *Field {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	f := &Field{rng: rng, palettes: palettes, w: w, h: h}
	f.populate()

	return f
}

func (f *Field) Resize(w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}

	f.mu.Lock()
	f.w, f.h = w, h
	f.mu.Unlock()
}

func (f *Field) between(lo, hi float64) float64 {
	return lo + f.rng.Float64()*(hi-lo)
}

func (f *Field) sign() float64 {
	if f.rng.Float64() < 0.5 {
		return -1
	}
	return 1
}

func (f *Field) spawn() *Sprite {
	size := math.Round(f.between(spriteSizeMin, spriteSizeMax))
	speed := f.between(driftSpeedMin, driftSpeedMax)
	lateral := (f.rng.Float64() - 0.5) * speed * 0.45

	s := &Sprite{Size: size, age: 0}

	s.ID, _ = gonanoid.New(12)

	if len(f.palettes) > 0 {
		s.Palette = f.palettes[f.rng.IntN(len(f.palettes))]
	}

	switch f.rng.IntN(4) {
	case 0: // left
		s.X, s.Y = -spawnBuffer-size, f.rng.Float64()*(f.h-size)
		s.vx, s.vy = speed, lateral
	case 1: // right
		s.X, s.Y = f.w+spawnBuffer, f.rng.Float64()*(f.h-size)
		s.vx, s.vy = -speed, lateral
	case 2: // top
		s.X, s.Y = f.rng.Float64()*(f.w-size), -spawnBuffer-size
		s.vx, s.vy = lateral, speed
	default: // bottom
		s.X, s.Y = f.rng.Float64()*(f.w-size), f.h+spawnBuffer
		s.vx, s.vy = lateral, -speed
	}

	if f.rng.Float64() < 0.55 {
		s.curveStrength = f.between(8, 26)
		s.curveFreq = f.between(0.25, 0.8)
	}
	s.curvePhase = f.rng.Float64() * 2 * math.Pi
	s.curveDir = f.sign()

	if f.rng.Float64() < 0.9 {
		s.spin = f.sign() * f.between(10, 44)
	}
	s.Rot = f.rng.Float64() * 360

	return s
}

func (f *Field) populate() {
	for len(f.sprites) < fieldPopulation {
		f.sprites = append(f.sprites, f.spawn())
	}
}

func (f *Field) gone(s *Sprite) bool {
	return s.X < -despawnBuffer-s.Size ||
		s.X > f.w+despawnBuffer ||
		s.Y < -despawnBuffer-s.Size ||
		s.Y > f.h+despawnBuffer
}

// Step advances the field. Long gaps are clamped so a stalled connection
// does not teleport sprites.
func (f *Field) Step(elapsed time.Duration) {
	dt := min(elapsed, maxStep).Seconds()
	if dt <= 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.sprites) - 1; i >= 0; i-- {
		s := f.sprites[i]
		s.age += dt

		if !s.Grabbed {
			if s.curveStrength > 0 {
				a := math.Sin(s.age*s.curveFreq*2*math.Pi+s.curvePhase) * s.curveStrength * s.curveDir

				vlen := math.Hypot(s.vx, s.vy)
				if vlen == 0 {
					vlen = 1
				}
				nx, ny := -s.vy/vlen, s.vx/vlen

				s.vx += nx * a * dt
				s.vy += ny * a * dt
			}

			s.X += s.vx * dt
			s.Y += s.vy * dt
		}

		s.Rot += s.spin * dt

		if !s.Grabbed && f.gone(s) {
			f.sprites = slices.Delete(f.sprites, i, i+1)
		}
	}

	f.populate()
}

// Frame copies the visible state, bottom sprite first.
func (f *Field) Frame() []Sprite {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Sprite, len(f.sprites))
	for i, s := range f.sprites {
		out[i] = *s
	}
	return out
}

func (f *Field) find(id string) (int, *Sprite) {
	for i, s := range f.sprites {
		if s.ID == id {
			return i, s
		}
	}
	return -1, nil
}

// Grab picks up a sprite at pointer (x, y) and raises it above the rest.
// t is the pointer timestamp in milliseconds.
func (f *Field) Grab(id string, x, y, t float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, s := f.find(id)
	if s == nil {
		return false
	}

	f.sprites = append(slices.Delete(f.sprites, i, i+1), s)
	s.Grabbed = true

	f.dragID = id
	f.offsetX, f.offsetY = x-s.X, y-s.Y
	f.samples = f.samples[:0]
	f.record(x, y, t)

	return true
}

func (f *Field) record(x, y, t float64) {
	f.samples = append(f.samples, dragSample{x: x, y: y, t: t})
	if len(f.samples) > flingSamples {
		f.samples = f.samples[len(f.samples)-flingSamples:]
	}
}

// Move drags the held sprite. Its velocity is left alone until release.
func (f *Field) Move(x, y, t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dragID == "" {
		return
	}
	_, s := f.find(f.dragID)
	if s == nil {
		return
	}

	s.X, s.Y = x-f.offsetX, y-f.offsetY
	f.record(x, y, t)
}

func (f *Field) flingVelocity() (vx, vy, speed float64) {
	if len(f.samples) < 2 {
		return 0, 0, 0
	}

	a, b := f.samples[0], f.samples[len(f.samples)-1]
	dt := math.Max(1, b.t-a.t) / 1000

	vx = (b.x - a.x) / dt
	vy = (b.y - a.y) / dt

	return vx, vy, math.Hypot(vx, vy)
}

func clampAbs(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// Release lets go of the held sprite. A fast enough drag flings it with a
// spin bonus; anything slower counts as a click and keeps the old drift.
func (f *Field) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.dragID
	f.dragID = ""
	defer func() { f.samples = f.samples[:0] }()

	if id == "" {
		return
	}
	_, s := f.find(id)
	if s == nil {
		return
	}

	vx, vy, speed := f.flingVelocity()
	if speed >= clickSpeed {
		fx, fy := clampAbs(vx, maxFling), clampAbs(vy, maxFling)
		s.vx, s.vy = fx, fy

		dir := 1.0
		if fx*0.001+fy*0.001 < 0 {
			dir = -1
		}
		s.spin += dir * math.Min(maxSpinBonus, speed*0.05)
	}

	s.Grabbed = false
}

// Dragging is the id of the held sprite, or "".
func (f *Field) Dragging() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.dragID
}
