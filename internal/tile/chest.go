package tile

import "tilesync.ai/internal/nbt"

const (
	TagCustomName = "CustomName"
	TagPairX      = "pairx"
	TagPairZ      = "pairz"
	TagPairLead   = "pairlead"
)

// named is the custom-name part shared by containers.
type named struct {
	host *Spawnable
	name string
}

func (n *named) Name() string  { return n.name }
func (n *named) HasName() bool { return n.name != "" }

func (n *named) SetName(name string) {
	if name == n.name {
		return
	}
	n.host.Mutate(func() { n.name = name })
}

func (n *named) appendName(c *nbt.Compound) {
	if n.name != "" {
		c.SetString(TagCustomName, n.name)
	}
}

// Chest may be paired with a horizontally adjacent chest to form a double chest.
type Chest struct {
	*Spawnable
	named

	pair     *Chest
	pairLead bool
}

func NewChest(id int64, pos Pos, opts ...Option) *Chest {
	c := &Chest{}
	c.Spawnable = New(id, pos, c, opts...)
	c.named.host = c.Spawnable
	return c
}

func (*Chest) SaveID() string { return KindChest }

func (c *Chest) AppendSpawnData(rec *nbt.Compound) {
	if c.pair != nil {
		p := c.pair.Pos()
		rec.SetInt(TagPairX, p.X)
		rec.SetInt(TagPairZ, p.Z)
		lead := int8(0)
		if c.pairLead {
			lead = 1
		}
		rec.SetByte(TagPairLead, lead)
	}
	c.appendName(rec)
}

func (c *Chest) Pair() *Chest   { return c.pair }
func (c *Chest) IsPaired() bool { return c.pair != nil }

// PairWith links c and other. Both must be open, unpaired, on the same Y
// level and adjacent along X or Z. c becomes the lead half.
func (c *Chest) PairWith(other *Chest) bool {
	if other == nil || other == c || c.pair != nil || other.pair != nil {
		return false
	}
	if c.Closed() || other.Closed() {
		return false
	}
	a, b := c.Pos(), other.Pos()
	if a.Y != b.Y || abs32(a.X-b.X)+abs32(a.Z-b.Z) != 1 {
		return false
	}
	c.Mutate(func() {
		c.pair = other
		c.pairLead = true
	})
	other.Mutate(func() {
		other.pair = c
		other.pairLead = false
	})
	return true
}

func (c *Chest) Unpair() {
	other := c.pair
	if other == nil {
		return
	}
	c.Mutate(func() {
		c.pair = nil
		c.pairLead = false
	})
	if !other.Closed() {
		other.Mutate(func() {
			other.pair = nil
			other.pairLead = false
		})
	} else {
		other.pair = nil
	}
}

func (c *Chest) onClose() {
	if c.pair == nil {
		return
	}
	other := c.pair
	c.pair = nil
	other.Mutate(func() {
		other.pair = nil
		other.pairLead = false
	})
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
