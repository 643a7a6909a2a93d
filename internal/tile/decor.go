package tile

import "tilesync.ai/internal/nbt"

const (
	TagPotItem = "item"
	TagPotData = "mData"

	TagBedColor = "color"

	TagSkullType = "SkullType"
	TagSkullRot  = "Rot"

	TagFrameItem       = "Item"
	TagFrameRotation   = "ItemRotation"
	TagFrameDropChance = "ItemDropChance"

	TagItemID     = "id"
	TagItemCount  = "Count"
	TagItemDamage = "Damage"
)

type FlowerPot struct {
	*Spawnable

	item int16
	data int32
}

func NewFlowerPot(id int64, pos Pos, opts ...Option) *FlowerPot {
	p := &FlowerPot{}
	p.Spawnable = New(id, pos, p, opts...)
	return p
}

func (*FlowerPot) SaveID() string { return KindFlowerPot }

func (p *FlowerPot) AppendSpawnData(c *nbt.Compound) {
	c.SetShort(TagPotItem, p.item)
	c.SetInt(TagPotData, p.data)
}

func (p *FlowerPot) Plant() (item int16, data int32) { return p.item, p.data }
func (p *FlowerPot) HasPlant() bool                  { return p.item != 0 }

func (p *FlowerPot) SetPlant(item int16, data int32) {
	if item == p.item && data == p.data {
		return
	}
	p.Mutate(func() {
		p.item = item
		p.data = data
	})
}

func (p *FlowerPot) Clear() { p.SetPlant(0, 0) }

type Bed struct {
	*Spawnable

	color int8
}

func NewBed(id int64, pos Pos, opts ...Option) *Bed {
	b := &Bed{color: 14} // red
	b.Spawnable = New(id, pos, b, opts...)
	return b
}

func (*Bed) SaveID() string { return KindBed }

func (b *Bed) AppendSpawnData(c *nbt.Compound) { c.SetByte(TagBedColor, b.color) }

func (b *Bed) Color() int8 { return b.color }

func (b *Bed) SetColor(color int8) {
	if color == b.color {
		return
	}
	b.Mutate(func() { b.color = color })
}

type Skull struct {
	*Spawnable

	skullType int8
	rot       int8
}

func NewSkull(id int64, pos Pos, opts ...Option) *Skull {
	s := &Skull{}
	s.Spawnable = New(id, pos, s, opts...)
	return s
}

func (*Skull) SaveID() string { return KindSkull }

func (s *Skull) AppendSpawnData(c *nbt.Compound) {
	c.SetByte(TagSkullType, s.skullType)
	c.SetByte(TagSkullRot, s.rot)
}

func (s *Skull) SkullType() int8 { return s.skullType }
func (s *Skull) Rotation() int8  { return s.rot }

func (s *Skull) SetSkullType(t int8) {
	if t == s.skullType {
		return
	}
	s.Mutate(func() { s.skullType = t })
}

// SetRotation takes one of 16 facing steps.
func (s *Skull) SetRotation(rot int8) {
	rot &= 0x0F
	if rot == s.rot {
		return
	}
	s.Mutate(func() { s.rot = rot })
}

// ItemStack is the minimal item shape shown inside an item frame.
type ItemStack struct {
	ID     int16
	Count  int8
	Damage int16
}

func (it ItemStack) Empty() bool { return it.ID == 0 || it.Count <= 0 }

type ItemFrame struct {
	*Spawnable

	item       ItemStack
	rotation   int8
	dropChance float32
}

func NewItemFrame(id int64, pos Pos, opts ...Option) *ItemFrame {
	f := &ItemFrame{dropChance: 1}
	f.Spawnable = New(id, pos, f, opts...)
	return f
}

func (*ItemFrame) SaveID() string { return KindItemFrame }

func (f *ItemFrame) AppendSpawnData(c *nbt.Compound) {
	if !f.item.Empty() {
		c.Set(TagFrameItem, nbt.NewCompound().
			SetShort(TagItemID, f.item.ID).
			SetByte(TagItemCount, f.item.Count).
			SetShort(TagItemDamage, f.item.Damage))
	}
	c.SetByte(TagFrameRotation, f.rotation)
	c.SetFloat(TagFrameDropChance, f.dropChance)
}

func (f *ItemFrame) Item() ItemStack     { return f.item }
func (f *ItemFrame) Rotation() int8      { return f.rotation }
func (f *ItemFrame) DropChance() float32 { return f.dropChance }

func (f *ItemFrame) SetItem(it ItemStack) {
	if it.Empty() {
		it = ItemStack{}
	}
	if it == f.item {
		return
	}
	f.Mutate(func() { f.item = it })
}

// SetRotation takes one of 8 steps.
func (f *ItemFrame) SetRotation(rot int8) {
	rot &= 0x07
	if rot == f.rotation {
		return
	}
	f.Mutate(func() { f.rotation = rot })
}

func (f *ItemFrame) SetDropChance(p float32) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	if p == f.dropChance {
		return
	}
	f.Mutate(func() { f.dropChance = p })
}

type EnchantTable struct {
	*Spawnable
	named
}

func NewEnchantTable(id int64, pos Pos, opts ...Option) *EnchantTable {
	t := &EnchantTable{}
	t.Spawnable = New(id, pos, t, opts...)
	t.named.host = t.Spawnable
	return t
}

func (*EnchantTable) SaveID() string { return KindEnchantTable }

func (t *EnchantTable) AppendSpawnData(c *nbt.Compound) { t.appendName(c) }
