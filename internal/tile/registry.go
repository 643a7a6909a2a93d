package tile

import (
	"errors"
	"fmt"
	"sort"
)

// Kind ids, written as the spawn record's "id" field.
const (
	KindBed          = "Bed"
	KindChest        = "Chest"
	KindEnchantTable = "EnchantTable"
	KindFlowerPot    = "FlowerPot"
	KindFurnace      = "Furnace"
	KindItemFrame    = "ItemFrame"
	KindSign         = "Sign"
	KindSkull        = "Skull"
)

var ErrUnknownKind = errors.New("tile: unknown kind")

var constructors = map[string]func(id int64, pos Pos, opts ...Option) *Spawnable{
	KindBed:          func(id int64, pos Pos, opts ...Option) *Spawnable { return NewBed(id, pos, opts...).Spawnable },
	KindChest:        func(id int64, pos Pos, opts ...Option) *Spawnable { return NewChest(id, pos, opts...).Spawnable },
	KindEnchantTable: func(id int64, pos Pos, opts ...Option) *Spawnable { return NewEnchantTable(id, pos, opts...).Spawnable },
	KindFlowerPot:    func(id int64, pos Pos, opts ...Option) *Spawnable { return NewFlowerPot(id, pos, opts...).Spawnable },
	KindFurnace:      func(id int64, pos Pos, opts ...Option) *Spawnable { return NewFurnace(id, pos, opts...).Spawnable },
	KindItemFrame:    func(id int64, pos Pos, opts ...Option) *Spawnable { return NewItemFrame(id, pos, opts...).Spawnable },
	KindSign:         func(id int64, pos Pos, opts ...Option) *Spawnable { return NewSign(id, pos, opts...).Spawnable },
	KindSkull:        func(id int64, pos Pos, opts ...Option) *Spawnable { return NewSkull(id, pos, opts...).Spawnable },
}

// Kinds lists every registered kind, sorted.
func Kinds() []string {
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewByKind constructs a tile of the given kind. The concrete variant is
// available through Variant().
func NewByKind(kind string, id int64, pos Pos, opts ...Option) (*Spawnable, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return ctor(id, pos, opts...), nil
}
