package nbt

import (
	"bytes"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"
)

func TestNetworkEncoder_KnownBytes(t *testing.T) {
	c := NewCompound().
		SetString("id", "Sign").
		SetInt("x", 1).
		SetInt("y", -1).
		SetShort("s", 300)

	got := NetworkEncoder{}.Encode(c)
	want := []byte{
		0x0A, 0x00, // root compound, empty name
		0x08, 0x02, 'i', 'd', 0x04, 'S', 'i', 'g', 'n',
		0x03, 0x01, 'x', 0x02, // zigzag(1)
		0x03, 0x01, 'y', 0x01, // zigzag(-1)
		0x02, 0x01, 's', 0x2C, 0x01, // 300 LE
		0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("encode mismatch:\n got %x\nwant %x", got, want)
	}
}

func TestCompound_SetKeepsFirstPosition(t *testing.T) {
	c := NewCompound().SetString("id", "Chest").SetInt("x", 1).SetInt("y", 2)
	c.SetString("id", "Furnace")
	c.SetInt("z", 3)

	if got, want := c.Names(), []string{"id", "x", "y", "z"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names=%v want %v", got, want)
	}
	if id, _ := c.GetString("id"); id != "Furnace" {
		t.Fatalf("id=%q want Furnace", id)
	}
	c.Remove("x")
	if c.Has("x") || c.Len() != 3 {
		t.Fatalf("remove failed: %v", c.Names())
	}
}

func TestNetworkEncoder_Deterministic(t *testing.T) {
	build := func() *Compound {
		item := NewCompound().SetShort("id", 1).SetByte("Count", 3)
		return NewCompound().
			SetString("id", "ItemFrame").
			Set("Item", item).
			Set("Pages", NewList(TagString, String("a"), String("b"))).
			Set("Ints", IntArray{1, -2, 3}).
			SetFloat("ItemDropChance", 1)
	}
	a := Shared().Encode(build())
	b := Shared().Encode(build())
	if !bytes.Equal(a, b) {
		t.Fatalf("same record encoded differently")
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	in := NewCompound().
		SetString("id", "Sign").
		SetInt("x", -40).
		SetInt("y", 64).
		SetInt("z", 1<<20).
		SetLong("t", -1<<40).
		SetByte("b", -3).
		Set("d", Double(2.5)).
		Set("raw", ByteArray{1, 2, 3}).
		Set("ints", IntArray{4, -5}).
		Set("nested", NewCompound().Set("l", NewList(TagInt, Int(7), Int(-7))))

	out, err := Decode(Shared().Encode(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Len() != in.Len() {
		t.Fatalf("fields=%v want %v", out.Names(), in.Names())
	}
	in.Each(func(name string, want Tag) {
		got, ok := out.Get(name)
		if !ok || !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %#v want %#v", name, got, want)
		}
	})
	if got, want := out.Names(), []string{"b", "d", "id", "ints", "nested", "raw", "t", "x", "y", "z"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("decoded order=%v want %v", got, want)
	}
}

func TestDecode_Errors(t *testing.T) {
	good := Shared().Encode(NewCompound().SetString("Text", "hello"))

	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{"empty", nil, ErrMalformed},
		{"not compound", []byte{0x08, 0x00, 0x00}, ErrNotCompound},
		{"truncated", good[:len(good)-3], ErrMalformed},
		{"trailing", append(append([]byte{}, good...), 0x00), ErrTrailing},
		{"unknown tag", []byte{0x0A, 0x00, 0x63, 0x00, 0x00}, ErrMalformed},
	}
	for _, tc := range cases {
		_, err := Decode(tc.in)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want %v", tc.name, err, tc.want)
		}
	}
}

func TestDecode_DepthLimit(t *testing.T) {
	b := []byte{0x0A, 0x00}
	for i := 0; i < 600; i++ {
		b = append(b, 0x0A, 0x01, 'n')
	}
	for i := 0; i < 601; i++ {
		b = append(b, 0x00)
	}
	if _, err := Decode(b); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err=%v want ErrMalformed", err)
	}
}

// flatRecord hand-builds a root compound of n Byte fields named f0..fn-1,
// followed by extra raw fields.
func flatRecord(n int, extra ...byte) []byte {
	b := []byte{0x0A, 0x00}
	for i := 0; i < n; i++ {
		name := "f" + strconv.Itoa(i)
		b = append(b, 0x01, byte(len(name)))
		b = append(b, name...)
		b = append(b, byte(i))
	}
	b = append(b, extra...)
	return append(b, 0x00)
}

func TestDecode_LargeFlatRecord(t *testing.T) {
	const n = 100000
	b := flatRecord(n)
	start := time.Now()
	c, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Len() != n {
		t.Fatalf("fields=%d want %d", c.Len(), n)
	}
	if v, _ := c.GetByte("f99999"); v != int8(byte(99999)) {
		t.Fatalf("f99999=%d", v)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Fatalf("decode of %d fields took %s", n, d)
	}
}

func TestDecode_DuplicateNameKeepsLast(t *testing.T) {
	b := flatRecord(2, 0x01, 0x02, 'f', '0', 0x2A)
	c, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("fields=%v", c.Names())
	}
	if v, _ := c.GetByte("f0"); v != 0x2A {
		t.Fatalf("f0=%d want 42", v)
	}
}

func TestNetworkEncoder_PanicsOnMixedList(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for heterogeneous list")
		}
	}()
	Shared().Encode(NewCompound().Set("l", NewList(TagInt, Int(1), String("x"))))
}

func TestNetworkEncoder_EmptyList(t *testing.T) {
	got := Shared().Encode(NewCompound().Set("l", NewList(TagString)))
	want := []byte{0x0A, 0x00, 0x09, 0x01, 'l', 0x08, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("encode=%x want %x", got, want)
	}
}
