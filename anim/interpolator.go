// Package anim implements key frame controllers used to animate scene
// graph node transforms.
package anim

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Control produces animated values for given time.
type Control interface {
	Channels() int
	// Value writes value at time into out and returns key index usable
	// as hint for the next call.
	Value(time float32, out []float32, hint int) int
	EndTime() float32
}

// Behaviour defines how time outside of key range is mapped.
type Behaviour int

const (
	BehaviourReset Behaviour = iota
	BehaviourConstant
	BehaviourRepeat
	BehaviourOscillate
)

var behaviourNames = []string{"reset", "constant", "repeat", "oscillate"}

func (b Behaviour) String() string {
	if b >= 0 && int(b) < len(behaviourNames) {
		return behaviourNames[b]
	}
	return fmt.Sprintf("Behaviour(%d)", int(b))
}

func ParseBehaviour(s string) (Behaviour, error) {
	for i, name := range behaviourNames {
		if name == s {
			return Behaviour(i), nil
		}
	}
	return 0, errors.Errorf("Unknown animation behaviour %q", s)
}

type Interpolation int

const (
	InterpolateStepped Interpolation = iota
	InterpolateLinear
	InterpolateCatmullRom
)

func (i Interpolation) String() string {
	switch i {
	case InterpolateStepped:
		return "stepped"
	case InterpolateLinear:
		return "linear"
	case InterpolateCatmullRom:
		return "catmullrom"
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

// Interpolator is a key frame animation of fixed number of channels.
// Quaternion interpolators have 4 channels (x, y, z, w) and slerp between keys.
type Interpolator struct {
	channels      int
	quaternion    bool
	interpolation Interpolation
	times         []float32
	values        []float32

	EndBehaviour Behaviour
	PreBehaviour Behaviour
}

func NewVectorInterpolator(channels int) *Interpolator {
	if channels <= 0 {
		panic(fmt.Sprintf("invalid interpolator channels count %d", channels))
	}
	return &Interpolator{
		channels:      channels,
		interpolation: InterpolateLinear,
		EndBehaviour:  BehaviourRepeat,
		PreBehaviour:  BehaviourConstant,
	}
}

func NewQuaternionInterpolator() *Interpolator {
	ip := NewVectorInterpolator(4)
	ip.quaternion = true
	return ip
}

func (ip *Interpolator) Channels() int { return ip.channels }

func (ip *Interpolator) IsQuaternion() bool { return ip.quaternion }

func (ip *Interpolator) Keys() int { return len(ip.times) }

func (ip *Interpolator) Interpolation() Interpolation { return ip.interpolation }

func (ip *Interpolator) SetInterpolation(i Interpolation) {
	if ip.quaternion && i == InterpolateCatmullRom {
		i = InterpolateLinear
	}
	ip.interpolation = i
}

// SetKeys resizes key storage; new keys are zero.
func (ip *Interpolator) SetKeys(count int) {
	times := make([]float32, count)
	values := make([]float32, count*ip.channels)
	copy(times, ip.times)
	copy(values, ip.values)
	ip.times, ip.values = times, values
}

func (ip *Interpolator) assertKey(i int) {
	if i < 0 || i >= len(ip.times) {
		panic(fmt.Sprintf("key index %d out of range [0,%d)", i, len(ip.times)))
	}
}

func (ip *Interpolator) assertSize(v []float32) {
	if len(v) != ip.channels {
		panic(fmt.Sprintf("interpolator has %d channels, got %d values", ip.channels, len(v)))
	}
}

func (ip *Interpolator) SetKeyTime(i int, time float32) {
	ip.assertKey(i)
	ip.times[i] = time
}

func (ip *Interpolator) SetKeyValue(i int, value []float32) {
	ip.assertKey(i)
	ip.assertSize(value)
	copy(ip.values[i*ip.channels:], value)
}

// AddKey appends key. Keys must be added in ascending time order or
// sorted with SortKeys afterwards.
func (ip *Interpolator) AddKey(time float32, value ...float32) {
	ip.assertSize(value)
	ip.times = append(ip.times, time)
	ip.values = append(ip.values, value...)
}

func (ip *Interpolator) KeyTime(i int) float32 {
	ip.assertKey(i)
	return ip.times[i]
}

// KeyValue returns slice of internal key storage.
func (ip *Interpolator) KeyValue(i int) []float32 {
	ip.assertKey(i)
	return ip.values[i*ip.channels : (i+1)*ip.channels]
}

// SortKeys orders keys by ascending time, keeping equal keys stable.
func (ip *Interpolator) SortKeys() {
	order := make([]int, len(ip.times))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return ip.times[order[a]] < ip.times[order[b]] })

	times := make([]float32, len(ip.times))
	values := make([]float32, len(ip.values))
	for i, o := range order {
		times[i] = ip.times[o]
		copy(values[i*ip.channels:], ip.values[o*ip.channels:(o+1)*ip.channels])
	}
	ip.times, ip.values = times, values
}

// EndTime returns time of last key or 0 without keys.
func (ip *Interpolator) EndTime() float32 {
	if len(ip.times) == 0 {
		return 0
	}
	return ip.times[len(ip.times)-1]
}

// FindKey returns index of last key before time, searching from hint first.
func (ip *Interpolator) FindKey(time float32, hint int) int {
	last := len(ip.times) - 1
	if last < 0 {
		panic("FindKey on interpolator without keys")
	}
	if hint < 0 || hint > last {
		hint = 0
	}
	if time <= ip.times[0] {
		return 0
	} else if time >= ip.times[last] {
		return last
	}

	for i := hint; i < last; i++ {
		if time >= ip.times[i] && time < ip.times[i+1] {
			return i
		}
	}
	for i := 0; i < hint; i++ {
		if time >= ip.times[i] && time < ip.times[i+1] {
			return i
		}
	}
	return 0
}

func fmod(a, b float32) float32 {
	return float32(math.Mod(float64(a), float64(b)))
}

// NormalizedTime maps time into [first key time, last key time] according
// to pre and end behaviours.
func (ip *Interpolator) NormalizedTime(time float32) float32 {
	if len(ip.times) < 2 {
		return ip.times[0]
	}
	start := ip.times[0]
	end := ip.times[len(ip.times)-1]
	length := end - start
	if length <= 1e-9 {
		return start
	}

	if time < start {
		switch ip.PreBehaviour {
		case BehaviourReset:
			time = end
		case BehaviourConstant:
			time = start
		case BehaviourRepeat:
			time = end - fmod(start-time, length)
		case BehaviourOscillate:
			time = fmod(start-time, 2*length)
			if time >= length {
				time = 2*length - time
			}
			time += start
		}
	}

	switch ip.EndBehaviour {
	case BehaviourReset:
		if time >= end {
			time = start
		}
	case BehaviourConstant:
		if time > end {
			time = end
		}
	case BehaviourRepeat:
		time = start + fmod(time-start, length)
	case BehaviourOscillate:
		time = fmod(time-start, 2*length)
		if time >= length {
			time = 2*length - time
		}
		time += start
	}
	return time
}

func (ip *Interpolator) Value(time float32, out []float32, hint int) int {
	ip.assertSize(out)
	last := len(ip.times) - 1
	if last < 0 {
		panic("Value of interpolator without keys")
	}
	if last == 0 {
		copy(out, ip.KeyValue(0))
		return 0
	}

	time = ip.NormalizedTime(time)
	key := ip.FindKey(time, hint)
	if time >= ip.times[last] {
		copy(out, ip.KeyValue(last))
		return last
	}

	t0, t1 := ip.times[key], ip.times[key+1]
	u := float32(0)
	if interval := t1 - t0; interval > math.SmallestNonzeroFloat32 {
		u = (time - t0) / interval
	}

	switch {
	case ip.interpolation == InterpolateStepped:
		copy(out, ip.KeyValue(key))
	case ip.quaternion:
		p, q := ip.Quat(key), ip.Quat(key+1)
		if p.Dot(q) < 0 {
			q = q.Scale(-1)
		}
		r := mgl32.QuatSlerp(p, q, u).Normalize()
		out[0], out[1], out[2], out[3] = r.V[0], r.V[1], r.V[2], r.W
	case ip.interpolation == InterpolateCatmullRom:
		ip.hermite(key, u, out)
	default:
		v1, v2 := ip.KeyValue(key), ip.KeyValue(key+1)
		for i := range out {
			out[i] = v1[i] + (v2[i]-v1[i])*u
		}
	}
	return key
}

func (ip *Interpolator) hermite(key int, u float32, out []float32) {
	last := len(ip.times) - 1
	v1, v2 := ip.KeyValue(key), ip.KeyValue(key+1)

	tanOut := make([]float32, ip.channels)
	tanIn := make([]float32, ip.channels)
	if key > 0 {
		v0 := ip.KeyValue(key - 1)
		t := (ip.times[key] - ip.times[key-1]) / (ip.times[key+1] - ip.times[key-1])
		for i := range tanOut {
			tanOut[i] = t * (v2[i] - v0[i])
		}
	} else {
		for i := range tanOut {
			tanOut[i] = v2[i] - v1[i]
		}
	}
	if key+2 <= last {
		v3 := ip.KeyValue(key + 2)
		t := (ip.times[key+1] - ip.times[key]) / (ip.times[key+2] - ip.times[key])
		for i := range tanIn {
			tanIn[i] = t * (v3[i] - v1[i])
		}
	} else {
		for i := range tanIn {
			tanIn[i] = v2[i] - v1[i]
		}
	}

	u2 := u * u
	u3 := u * u2
	tmp := 2*u3 - 3*u2
	h1 := tmp + 1
	h2 := -tmp
	h3 := u3 - 2*u2 + u
	h4 := u3 - u2
	for i := range out {
		out[i] = h1*v1[i] + h2*v2[i] + h3*tanOut[i] + h4*tanIn[i]
	}
}

// Quat returns key i of quaternion interpolator.
func (ip *Interpolator) Quat(i int) mgl32.Quat {
	v := ip.KeyValue(i)
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
}

func (ip *Interpolator) Clone() *Interpolator {
	c := *ip
	c.times = append([]float32(nil), ip.times...)
	c.values = append([]float32(nil), ip.values...)
	return &c
}
