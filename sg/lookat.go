package sg

import (
	"github.com/go-gl/mathgl/mgl32"
)

// LookAtControl is a rotation controller orienting source node to target.
type LookAtControl struct {
	source *Node
	target *Node
	up     mgl32.Vec3
	busy   bool
}

func NewLookAtControl(source, target *Node) *LookAtControl {
	if source == nil || target == nil || source == target {
		panic("look-at control needs two different nodes")
	}
	return &LookAtControl{source: source, target: target, up: mgl32.Vec3{0, 1, 0}}
}

func (c *LookAtControl) Channels() int { return 4 }

func (c *LookAtControl) EndTime() float32 { return 0 }

func (c *LookAtControl) Target() *Node { return c.target }

// Value brings target and source ancestors to time and writes rotation
// quaternion (x, y, z, w) of source pointing to target.
func (c *LookAtControl) Value(time float32, out []float32, hint int) int {
	q := c.source.rotation
	if !c.busy {
		c.busy = true
		for p := c.target; p != nil; p = p.parent {
			if p != c.source {
				p.SetState(time)
			}
		}
		for p := c.source.parent; p != nil; p = p.parent {
			p.SetState(time)
		}
		if ctrl := c.source.posCtrl; ctrl != nil {
			var v [3]float32
			hint = ctrl.Value(time, v[:], hint)
			c.source.position = v
		}

		saved := c.source.rotation
		c.source.LookAt(c.target.WorldPosition(), c.up)
		q = c.source.rotation
		c.source.rotation = saved
		c.busy = false
	}
	out[0], out[1], out[2], out[3] = q.V[0], q.V[1], q.V[2], q.W
	return hint
}
