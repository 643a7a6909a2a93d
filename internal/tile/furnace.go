package tile

import "tilesync.ai/internal/nbt"

const (
	TagBurnTime     = "BurnTime"
	TagCookTime     = "CookTime"
	TagBurnDuration = "BurnDuration"

	// FurnaceCookTicks is the number of burning ticks needed to smelt one item.
	FurnaceCookTicks = 200
	// FurnaceFuelTicks is how long one fuel item burns.
	FurnaceFuelTicks = 1600
)

// Furnace burns fuel to smelt input items. Burn and cook progress are
// visible to clients, so every tick that moves them invalidates the tile.
type Furnace struct {
	*Spawnable
	named

	burnTime     int16
	cookTime     int16
	burnDuration int16

	fuel   int
	input  int
	output int
}

func NewFurnace(id int64, pos Pos, opts ...Option) *Furnace {
	f := &Furnace{}
	f.Spawnable = New(id, pos, f, opts...)
	f.named.host = f.Spawnable
	return f
}

func (*Furnace) SaveID() string { return KindFurnace }

func (f *Furnace) AppendSpawnData(c *nbt.Compound) {
	c.SetShort(TagBurnTime, f.burnTime)
	c.SetShort(TagCookTime, f.cookTime)
	c.SetShort(TagBurnDuration, f.burnDuration)
	f.appendName(c)
}

func (f *Furnace) BurnTime() int16 { return f.burnTime }
func (f *Furnace) CookTime() int16 { return f.cookTime }
func (f *Furnace) Fuel() int       { return f.fuel }
func (f *Furnace) Input() int      { return f.input }
func (f *Furnace) Output() int     { return f.output }

// AddFuel and AddInput only change slot contents, which are not part of the
// spawn record; they schedule the furnace so it starts burning.
func (f *Furnace) AddFuel(n int) {
	if n <= 0 {
		return
	}
	f.fuel += n
	f.ScheduleUpdate()
}

func (f *Furnace) AddInput(n int) {
	if n <= 0 {
		return
	}
	f.input += n
	f.ScheduleUpdate()
}

// TakeOutput empties the output slot.
func (f *Furnace) TakeOutput() int {
	n := f.output
	f.output = 0
	return n
}

// OnUpdate advances one tick. It reports whether the furnace is still active.
func (f *Furnace) OnUpdate() bool {
	if f.Closed() {
		return false
	}
	prevBurn, prevCook, prevDuration := f.burnTime, f.cookTime, f.burnDuration

	if f.burnTime <= 0 && f.input > 0 && f.fuel > 0 {
		f.fuel--
		f.burnTime = FurnaceFuelTicks
		f.burnDuration = FurnaceFuelTicks
	}
	if f.burnTime > 0 {
		f.burnTime--
		if f.input > 0 {
			f.cookTime++
			if f.cookTime >= FurnaceCookTicks {
				f.input--
				f.output++
				f.cookTime = 0
			}
		} else {
			f.cookTime = 0
		}
	} else {
		f.cookTime = 0
	}
	if f.burnTime <= 0 {
		f.burnDuration = 0
	}

	if f.burnTime != prevBurn || f.cookTime != prevCook || f.burnDuration != prevDuration {
		f.OnChanged()
	}
	return f.burnTime > 0 || (f.input > 0 && f.fuel > 0)
}
