package tile

import (
	"errors"
	"testing"

	"tilesync.ai/internal/nbt"
)

func decodeSpawn(t *testing.T, s *Spawnable) *nbt.Compound {
	t.Helper()
	rec, err := nbt.Decode(s.SerializedSpawnCompound())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return rec
}

func signEdit(text string) *nbt.Compound {
	return nbt.NewCompound().SetString(TagID, KindSign).SetString(TagText, text)
}

func TestSign_SpawnText(t *testing.T) {
	s := NewSign(1, Pos{})
	s.SetText("hello", "world")
	rec := decodeSpawn(t, s.Spawnable)
	if got, _ := rec.GetString(TagText); got != "hello\nworld\n\n" {
		t.Fatalf("Text=%q", got)
	}
}

func TestSign_SetTextInvalidatesOnlyOnChange(t *testing.T) {
	sched := &recordingScheduler{}
	s := NewSign(1, Pos{}, WithScheduler(sched))
	s.SetText("a")
	_ = s.SerializedSpawnCompound()
	s.SetDirty(false)

	s.SetText("a")
	if s.IsDirty() || !s.HasCache() {
		t.Fatalf("unchanged text invalidated the tile")
	}
	if err := s.SetLine(2, "c"); err != nil {
		t.Fatalf("SetLine: %v", err)
	}
	if !s.IsDirty() || s.HasCache() {
		t.Fatalf("changed line did not invalidate")
	}
	if err := s.SetLine(4, "x"); !errors.Is(err, ErrLineIndex) {
		t.Fatalf("SetLine(4) err=%v", err)
	}
	if len(sched.scheduled) != 2 {
		t.Fatalf("scheduled=%d want 2", len(sched.scheduled))
	}
}

func TestSign_UpdateFromClient(t *testing.T) {
	owner := &recordingObserver{id: "alice"}
	other := &recordingObserver{id: "bob"}

	cases := []struct {
		name    string
		creator string
		rec     *nbt.Compound
		by      Observer
		ok      bool
	}{
		{"creator edit", "alice", signEdit("one\ntwo"), owner, true},
		{"other player", "alice", signEdit("one"), other, false},
		{"no creator", "", signEdit("one"), owner, false},
		{"wrong id", "alice", nbt.NewCompound().SetString(TagID, KindChest).SetString(TagText, "x"), owner, false},
		{"missing text", "alice", nbt.NewCompound().SetString(TagID, KindSign), owner, false},
		{"too many lines", "alice", signEdit("1\n2\n3\n4\n5"), owner, false},
		{"line too long", "alice", signEdit(string(make([]rune, SignMaxLineLength+1))), owner, false},
	}
	for _, tc := range cases {
		s := NewSign(1, Pos{})
		s.SetText("orig")
		s.SetCreator(tc.creator)
		_ = s.SerializedSpawnCompound()
		s.SetDirty(false)

		got := s.UpdateCompoundTag(tc.rec, tc.by)
		if got != tc.ok {
			t.Fatalf("%s: accepted=%v want %v", tc.name, got, tc.ok)
		}
		if tc.ok != s.IsDirty() {
			t.Fatalf("%s: dirty=%v after accepted=%v", tc.name, s.IsDirty(), got)
		}
		if !tc.ok && s.Text()[0] != "orig" {
			t.Fatalf("%s: rejected edit changed text", tc.name)
		}
	}
}

func TestSign_UpdateStripsFormattingAndInvalidates(t *testing.T) {
	o := &recordingObserver{id: "alice"}
	s := NewSign(1, Pos{})
	s.SetText("hi")
	s.SetCreator("alice")
	_ = s.SerializedSpawnCompound()
	s.SetDirty(false)

	if !s.UpdateCompoundTag(signEdit("§ahi"), o) {
		t.Fatalf("edit rejected")
	}
	if s.Text()[0] != "hi" {
		t.Fatalf("line=%q want formatting stripped", s.Text()[0])
	}
	if !s.IsDirty() || s.HasCache() {
		t.Fatalf("accepted edit must invalidate even when text is unchanged")
	}
}

func TestSign_ChangeHookVeto(t *testing.T) {
	o := &recordingObserver{id: "alice"}
	s := NewSign(1, Pos{})
	s.SetCreator("alice")
	s.OnSignChange(func(_ *Sign, _ Observer, lines [SignLines]string) ([SignLines]string, bool) {
		if lines[0] == "banned" {
			return lines, false
		}
		lines[1] = "approved"
		return lines, true
	})
	if s.UpdateCompoundTag(signEdit("banned"), o) {
		t.Fatalf("veto ignored")
	}
	if !s.UpdateCompoundTag(signEdit("fine"), o) {
		t.Fatalf("edit rejected")
	}
	if s.Text()[1] != "approved" {
		t.Fatalf("hook rewrite lost: %q", s.Text())
	}
}

func TestSign_ClosedRejectsEdits(t *testing.T) {
	o := &recordingObserver{id: "alice"}
	s := NewSign(1, Pos{})
	s.SetCreator("alice")
	s.Close()
	if s.UpdateCompoundTag(signEdit("x"), o) {
		t.Fatalf("closed sign accepted edit")
	}
}

func TestCleanFormatting(t *testing.T) {
	cases := map[string]string{
		"plain":      "plain",
		"§cred§r ok": "red ok",
		"tab\there":  "tabhere",
		"trailing§":  "trailing",
	}
	for in, want := range cases {
		if got := CleanFormatting(in); got != want {
			t.Fatalf("CleanFormatting(%q)=%q want %q", in, got, want)
		}
	}
}

func TestChest_PairInvalidatesBoth(t *testing.T) {
	a := NewChest(1, Pos{X: 0, Y: 64, Z: 0})
	b := NewChest(2, Pos{X: 1, Y: 64, Z: 0})
	far := NewChest(3, Pos{X: 5, Y: 64, Z: 0})
	for _, c := range []*Chest{a, b, far} {
		_ = c.SerializedSpawnCompound()
		c.SetDirty(false)
	}

	if a.PairWith(far) {
		t.Fatalf("paired non-adjacent chests")
	}
	if !a.PairWith(b) {
		t.Fatalf("PairWith failed")
	}
	if !a.IsDirty() || !b.IsDirty() || far.IsDirty() {
		t.Fatalf("dirty a=%v b=%v far=%v", a.IsDirty(), b.IsDirty(), far.IsDirty())
	}

	rec := decodeSpawn(t, b.Spawnable)
	px, _ := rec.GetInt(TagPairX)
	lead, _ := rec.GetByte(TagPairLead)
	if px != 0 || lead != 0 {
		t.Fatalf("b pairx=%d lead=%d", px, lead)
	}
	rec = decodeSpawn(t, a.Spawnable)
	if lead, _ := rec.GetByte(TagPairLead); lead != 1 {
		t.Fatalf("a lead=%d want 1", lead)
	}

	b.SetDirty(false)
	a.Close()
	if b.IsPaired() || !b.IsDirty() {
		t.Fatalf("closing a did not unpair and invalidate b")
	}
	if decodeSpawn(t, b.Spawnable).Has(TagPairX) {
		t.Fatalf("b still spawns pair fields")
	}
}

func TestChest_CustomName(t *testing.T) {
	c := NewChest(1, Pos{})
	if decodeSpawn(t, c.Spawnable).Has(TagCustomName) {
		t.Fatalf("unnamed chest spawns CustomName")
	}
	c.SetName("Loot")
	if got, _ := decodeSpawn(t, c.Spawnable).GetString(TagCustomName); got != "Loot" {
		t.Fatalf("CustomName=%q", got)
	}
}

func TestFurnace_TicksInvalidateWhileBurning(t *testing.T) {
	sched := &recordingScheduler{}
	f := NewFurnace(1, Pos{}, WithScheduler(sched))
	_ = f.SerializedSpawnCompound()
	f.SetDirty(false)

	if f.OnUpdate() {
		t.Fatalf("idle furnace reported active")
	}
	if f.IsDirty() {
		t.Fatalf("idle tick invalidated")
	}

	f.AddInput(1)
	f.AddFuel(1)
	if len(sched.scheduled) != 2 {
		t.Fatalf("slot changes must schedule, got %d", len(sched.scheduled))
	}
	if f.IsDirty() {
		t.Fatalf("slot changes are not spawn-visible")
	}

	for i := 0; i < FurnaceCookTicks; i++ {
		f.SetDirty(false)
		if !f.OnUpdate() {
			t.Fatalf("tick %d: furnace went idle while burning", i)
		}
		if !f.IsDirty() {
			t.Fatalf("tick %d: progress change did not invalidate", i)
		}
	}
	if f.Output() != 1 || f.Input() != 0 {
		t.Fatalf("output=%d input=%d", f.Output(), f.Input())
	}
	rec := decodeSpawn(t, f.Spawnable)
	burn, _ := rec.GetShort(TagBurnTime)
	if burn != FurnaceFuelTicks-FurnaceCookTicks {
		t.Fatalf("BurnTime=%d", burn)
	}
	if f.TakeOutput() != 1 || f.Output() != 0 {
		t.Fatalf("TakeOutput")
	}
}

func TestDecor_SpawnFields(t *testing.T) {
	pot := NewFlowerPot(1, Pos{})
	pot.SetPlant(38, 2)
	rec := decodeSpawn(t, pot.Spawnable)
	if item, _ := rec.GetShort(TagPotItem); item != 38 {
		t.Fatalf("pot item=%d", item)
	}

	bed := NewBed(2, Pos{})
	bed.SetColor(3)
	if c, _ := decodeSpawn(t, bed.Spawnable).GetByte(TagBedColor); c != 3 {
		t.Fatalf("bed color=%d", c)
	}

	skull := NewSkull(3, Pos{})
	skull.SetRotation(17)
	if r, _ := decodeSpawn(t, skull.Spawnable).GetByte(TagSkullRot); r != 1 {
		t.Fatalf("skull rot=%d want 1", r)
	}

	frame := NewItemFrame(4, Pos{})
	if decodeSpawn(t, frame.Spawnable).Has(TagFrameItem) {
		t.Fatalf("empty frame spawns Item")
	}
	frame.SetItem(ItemStack{ID: 264, Count: 1})
	item, ok := decodeSpawn(t, frame.Spawnable).GetCompound(TagFrameItem)
	if !ok {
		t.Fatalf("frame missing Item")
	}
	if id, _ := item.GetShort(TagItemID); id != 264 {
		t.Fatalf("frame item id=%d", id)
	}

	table := NewEnchantTable(5, Pos{})
	table.SetName("Arcane")
	if n, _ := decodeSpawn(t, table.Spawnable).GetString(TagCustomName); n != "Arcane" {
		t.Fatalf("table name=%q", n)
	}
}

func TestNewByKind(t *testing.T) {
	for _, kind := range Kinds() {
		s, err := NewByKind(kind, 1, Pos{X: 1})
		if err != nil {
			t.Fatalf("NewByKind(%s): %v", kind, err)
		}
		if s.Kind() != kind {
			t.Fatalf("Kind()=%s want %s", s.Kind(), kind)
		}
		if id, _ := decodeSpawn(t, s).GetString(TagID); id != kind {
			t.Fatalf("record id=%s want %s", id, kind)
		}
	}
	if _, err := NewByKind("Beacon", 1, Pos{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err=%v want ErrUnknownKind", err)
	}
}
