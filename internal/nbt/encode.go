package nbt

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"sync"

	gnbt "github.com/sandertv/gophertunnel/minecraft/nbt"
)

// Encoder turns a structured record into its wire bytes.
// Implementations must be safe to share between tiles: no per-call state may
// survive an Encode call.
type Encoder interface {
	Encode(c *Compound) []byte
}

// NetworkEncoder writes the network little-endian NBT variant through
// gophertunnel's encoder. The root is a nameless compound tag.
//
// gophertunnel encodes maps in random key order, so a Compound is handed to
// it as a struct built for the record, whose fields keep record order. Field
// names must be non-empty and must not be "-", which struct tags reserve.
type NetworkEncoder struct{}

func (NetworkEncoder) Encode(c *Compound) []byte {
	var buf bytes.Buffer
	if err := gnbt.NewEncoderWithEncoding(&buf, gnbt.NetworkLittleEndian).Encode(goValue(c).Interface()); err != nil {
		panic(fmt.Sprintf("nbt: encode: %v", err))
	}
	return buf.Bytes()
}

var (
	sharedOnce sync.Once
	shared     Encoder
)

// Shared returns the process-wide encoder. It is built once on first use.
func Shared() Encoder {
	sharedOnce.Do(func() {
		shared = NetworkEncoder{}
	})
	return shared
}

var (
	byteType  = reflect.TypeOf(uint8(0))
	int32Type = reflect.TypeOf(int32(0))
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
)

// goValue maps t onto the Go value gophertunnel encodes as the same tag.
func goValue(t Tag) reflect.Value {
	switch v := t.(type) {
	case Byte:
		return reflect.ValueOf(uint8(v))
	case Short:
		return reflect.ValueOf(int16(v))
	case Int:
		return reflect.ValueOf(int32(v))
	case Long:
		return reflect.ValueOf(int64(v))
	case Float:
		return reflect.ValueOf(float32(v))
	case Double:
		return reflect.ValueOf(float64(v))
	case String:
		return reflect.ValueOf(string(v))
	case ByteArray:
		arr := reflect.New(reflect.ArrayOf(len(v), byteType)).Elem()
		reflect.Copy(arr, reflect.ValueOf([]byte(v)))
		return arr
	case IntArray:
		arr := reflect.New(reflect.ArrayOf(len(v), int32Type)).Elem()
		reflect.Copy(arr, reflect.ValueOf([]int32(v)))
		return arr
	case *List:
		return listValue(v)
	case *Compound:
		return compoundValue(v)
	default:
		panic(fmt.Sprintf("nbt: cannot encode %T", t))
	}
}

func compoundValue(c *Compound) reflect.Value {
	fields := make([]reflect.StructField, len(c.entries))
	vals := make([]reflect.Value, len(c.entries))
	for i, e := range c.entries {
		if e.name == "" || e.name == "-" {
			panic(fmt.Sprintf("nbt: field name %q cannot be encoded", e.name))
		}
		vals[i] = goValue(e.tag)
		fields[i] = reflect.StructField{
			Name: "F" + strconv.Itoa(i),
			Type: vals[i].Type(),
			Tag:  reflect.StructTag("nbt:" + strconv.Quote(e.name)),
		}
	}
	sv := reflect.New(reflect.StructOf(fields)).Elem()
	for i, v := range vals {
		sv.Field(i).Set(v)
	}
	return sv
}

// listValue builds a []any, whose first item gives gophertunnel the element
// tag. Empty lists use a typed slice so the element tag survives.
func listValue(l *List) reflect.Value {
	if len(l.Items) == 0 {
		return reflect.MakeSlice(reflect.SliceOf(elemType(l.Elem)), 0, 0)
	}
	out := make([]any, len(l.Items))
	for i, it := range l.Items {
		if it.Type() != l.Elem {
			panic(fmt.Sprintf("nbt: list item %d is %s, list holds %s", i, it.Type(), l.Elem))
		}
		out[i] = goValue(it).Interface()
	}
	return reflect.ValueOf(out)
}

// elemType is the Go element type of an empty list of elem. An End list
// has no Go counterpart and is written as an empty Byte list.
func elemType(elem TagType) reflect.Type {
	switch elem {
	case TagShort:
		return reflect.TypeOf(int16(0))
	case TagInt:
		return int32Type
	case TagLong:
		return reflect.TypeOf(int64(0))
	case TagFloat:
		return reflect.TypeOf(float32(0))
	case TagDouble:
		return reflect.TypeOf(float64(0))
	case TagString:
		return reflect.TypeOf("")
	case TagByteArray:
		return reflect.ArrayOf(0, byteType)
	case TagIntArray:
		return reflect.ArrayOf(0, int32Type)
	case TagList:
		return reflect.SliceOf(anyType)
	case TagCompound:
		return reflect.StructOf(nil)
	default:
		return byteType
	}
}
