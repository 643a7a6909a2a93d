package nbt

import (
	"fmt"
	"strconv"
	"strings"
)

type entry struct {
	name string
	tag  Tag
}

// Compound is an ordered mapping of named tags.
//
// Setting an existing name replaces the value in place, so field order is the
// order in which names were first set. Encoders walk that order, which keeps
// the encoding of a given record deterministic.
type Compound struct {
	entries []entry
}

func (*Compound) Type() TagType { return TagCompound }

func NewCompound() *Compound { return &Compound{} }

// Set stores t under name and returns c for chaining.
func (c *Compound) Set(name string, t Tag) *Compound {
	if t == nil {
		panic(fmt.Sprintf("nbt: nil tag for %q", name))
	}
	for i := range c.entries {
		if c.entries[i].name == name {
			c.entries[i].tag = t
			return c
		}
	}
	c.entries = append(c.entries, entry{name: name, tag: t})
	return c
}

func (c *Compound) SetByte(name string, v int8) *Compound     { return c.Set(name, Byte(v)) }
func (c *Compound) SetShort(name string, v int16) *Compound   { return c.Set(name, Short(v)) }
func (c *Compound) SetInt(name string, v int32) *Compound     { return c.Set(name, Int(v)) }
func (c *Compound) SetLong(name string, v int64) *Compound    { return c.Set(name, Long(v)) }
func (c *Compound) SetFloat(name string, v float32) *Compound { return c.Set(name, Float(v)) }
func (c *Compound) SetString(name, v string) *Compound        { return c.Set(name, String(v)) }

func (c *Compound) Get(name string) (Tag, bool) {
	if c == nil {
		return nil, false
	}
	for _, e := range c.entries {
		if e.name == name {
			return e.tag, true
		}
	}
	return nil, false
}

func (c *Compound) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

func (c *Compound) Remove(name string) {
	for i, e := range c.entries {
		if e.name == name {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

func (c *Compound) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Names returns field names in record order.
func (c *Compound) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.name)
	}
	return out
}

// Each calls fn for every field in record order.
func (c *Compound) Each(fn func(name string, t Tag)) {
	if c == nil {
		return
	}
	for _, e := range c.entries {
		fn(e.name, e.tag)
	}
}

func (c *Compound) GetString(name string) (string, bool) {
	t, ok := c.Get(name)
	if !ok {
		return "", false
	}
	v, ok := t.(String)
	return string(v), ok
}

func (c *Compound) GetInt(name string) (int32, bool) {
	t, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	v, ok := t.(Int)
	return int32(v), ok
}

func (c *Compound) GetShort(name string) (int16, bool) {
	t, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	v, ok := t.(Short)
	return int16(v), ok
}

func (c *Compound) GetByte(name string) (int8, bool) {
	t, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	v, ok := t.(Byte)
	return int8(v), ok
}

func (c *Compound) GetCompound(name string) (*Compound, bool) {
	t, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	v, ok := t.(*Compound)
	return v, ok
}

// String renders the record in a compact SNBT-like form for logs and tools.
func (c *Compound) String() string {
	var b strings.Builder
	writeTag(&b, c)
	return b.String()
}

func writeTag(b *strings.Builder, t Tag) {
	switch v := t.(type) {
	case Byte:
		b.WriteString(strconv.Itoa(int(v)))
		b.WriteByte('b')
	case Short:
		b.WriteString(strconv.Itoa(int(v)))
		b.WriteByte('s')
	case Int:
		b.WriteString(strconv.Itoa(int(v)))
	case Long:
		b.WriteString(strconv.FormatInt(int64(v), 10))
		b.WriteByte('L')
	case Float:
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		b.WriteByte('f')
	case Double:
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 64))
		b.WriteByte('d')
	case String:
		b.WriteString(strconv.Quote(string(v)))
	case ByteArray:
		fmt.Fprintf(b, "[B;%d bytes]", len(v))
	case IntArray:
		b.WriteString("[I;")
		for i, n := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(n)))
		}
		b.WriteByte(']')
	case *List:
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			writeTag(b, it)
		}
		b.WriteByte(']')
	case *Compound:
		b.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(e.name)
			b.WriteByte(':')
			writeTag(b, e.tag)
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "<%T>", t)
	}
}
