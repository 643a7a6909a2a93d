package nbt

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"

	gnbt "github.com/sandertv/gophertunnel/minecraft/nbt"
)

var (
	ErrMalformed   = errors.New("nbt: malformed record")
	ErrUnknownTag  = errors.New("nbt: unsupported tag type")
	ErrNotCompound = errors.New("nbt: root is not a compound")
	ErrTrailing    = errors.New("nbt: trailing bytes after root")
)

// Decode parses a network little-endian record such as NetworkEncoder
// produces. Decoded compounds list their fields in name order; a name that
// appears twice keeps its last value.
func Decode(b []byte) (*Compound, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	if TagType(b[0]) != TagCompound {
		return nil, ErrNotCompound
	}
	r := bytes.NewReader(b)
	var root map[string]any
	if err := gnbt.NewDecoderWithEncoding(r, gnbt.NetworkLittleEndian).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d", ErrTrailing, r.Len())
	}
	return fromMap(root, 0)
}

const maxDepth = 512

// fromMap appends fields directly: map keys are unique, so no per-field
// duplicate scan is needed.
func fromMap(m map[string]any, depth int) (*Compound, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformed, maxDepth)
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Compound{entries: make([]entry, 0, len(names))}
	for _, name := range names {
		t, err := fromGo(m[name], depth)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		c.entries = append(c.entries, entry{name: name, tag: t})
	}
	return c, nil
}

func fromGo(v any, depth int) (Tag, error) {
	switch v := v.(type) {
	case uint8:
		return Byte(int8(v)), nil
	case int16:
		return Short(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Long(v), nil
	case float32:
		return Float(v), nil
	case float64:
		return Double(v), nil
	case string:
		return String(v), nil
	case map[string]any:
		return fromMap(v, depth+1)
	case []any:
		return fromSlice(v, depth+1)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return fromSlice(items, depth+1)
	case reflect.Array:
		// Byte and int arrays come back as fixed-size Go arrays.
		switch rv.Type().Elem().Kind() {
		case reflect.Uint8:
			out := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(out), rv)
			return ByteArray(out), nil
		case reflect.Int32:
			out := make([]int32, rv.Len())
			reflect.Copy(reflect.ValueOf(out), rv)
			return IntArray(out), nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownTag, v)
}

// fromSlice rebuilds a list. An empty list decodes with an End element.
func fromSlice(items []any, depth int) (*List, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformed, maxDepth)
	}
	l := &List{Elem: TagEnd, Items: make([]Tag, 0, len(items))}
	for i, it := range items {
		t, err := fromGo(it, depth)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		if i == 0 {
			l.Elem = t.Type()
		}
		l.Items = append(l.Items, t)
	}
	return l, nil
}
