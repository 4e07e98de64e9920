package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Field is one vertex attribute derived from a `starfield:"layout"` struct tag.
type Field struct {
	Name       string
	WGSLName   string
	Location   uint32
	Format     string
	Offset     uint64
	Components int
}

// Layout is the byte layout of a tagged struct. It drives both the buffer
// serialization and the GPU vertex buffer description.
type Layout struct {
	Fields []Field
	Stride uint64
}

var recordLayout = mustLayoutOf(ParticleRecord{})

// RecordLayout returns the layout of ParticleRecord.
func RecordLayout() Layout {
	return recordLayout
}

func mustLayoutOf(sample any) Layout {
	l, err := LayoutOf(sample)
	if err != nil {
		panic(err)
	}
	return l
}

// LayoutOf walks the struct fields of sample in declaration order. Untagged
// fields still occupy bytes.
func LayoutOf(sample any) (Layout, error) {
	t := reflect.TypeOf(sample)
	if t == nil || t.Kind() != reflect.Struct {
		return Layout{}, fmt.Errorf("layout: %T is not a struct", sample)
	}

	var l Layout
	var offset uint64
	seen := map[uint32]string{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("starfield") == "layout" {
			format := f.Tag.Get("format")
			components, ok := formatComponents(format)
			if !ok {
				return Layout{}, fmt.Errorf("layout: field %s: unsupported format %q", f.Name, format)
			}
			if uint64(components*4) != uint64(f.Type.Size()) {
				return Layout{}, fmt.Errorf("layout: field %s: format %s needs %d bytes, field has %d",
					f.Name, format, components*4, f.Type.Size())
			}
			loc, err := strconv.Atoi(f.Tag.Get("location"))
			if err != nil || loc < 0 {
				return Layout{}, fmt.Errorf("layout: field %s: bad location %q", f.Name, f.Tag.Get("location"))
			}
			if prev, dup := seen[uint32(loc)]; dup {
				return Layout{}, fmt.Errorf("layout: location %d used by %s and %s", loc, prev, f.Name)
			}
			seen[uint32(loc)] = f.Name
			l.Fields = append(l.Fields, Field{
				Name:       f.Name,
				WGSLName:   snakeCase(f.Name),
				Location:   uint32(loc),
				Format:     format,
				Offset:     offset,
				Components: components,
			})
		}
		offset += uint64(f.Type.Size())
	}
	l.Stride = offset
	return l, nil
}

func formatComponents(format string) (int, bool) {
	switch format {
	case "float":
		return 1, true
	case "float2":
		return 2, true
	case "float3":
		return 3, true
	case "float4":
		return 4, true
	}
	return 0, false
}

// WGSLType maps a layout format to its WGSL vertex input type.
func WGSLType(format string) string {
	switch format {
	case "float":
		return "f32"
	case "float2":
		return "vec2<f32>"
	case "float3":
		return "vec3<f32>"
	case "float4":
		return "vec4<f32>"
	}
	return ""
}

// WGSLStruct renders the layout as a WGSL vertex input struct.
func (l Layout) WGSLStruct(name string) string {
	fields := append([]Field(nil), l.Fields...)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Location < fields[j].Location })

	var b strings.Builder
	fmt.Fprintf(&b, "struct %s {\n", name)
	for _, f := range fields {
		fmt.Fprintf(&b, "    @location(%d) %s: %s,\n", f.Location, f.WGSLName, WGSLType(f.Format))
	}
	b.WriteString("};\n")
	return b.String()
}

// Encode serializes records back to back, Stride bytes each, little endian.
func (l Layout) Encode(records []ParticleRecord) []byte {
	out := make([]byte, 0, uint64(len(records))*l.Stride)
	for i := range records {
		out = appendValue(out, reflect.ValueOf(&records[i]).Elem())
	}
	return out
}

// Bytes serializes a uniform struct (or array of them) the same way records are.
func Bytes(v any) []byte {
	return appendValue(nil, reflect.ValueOf(v))
}

func appendValue(out []byte, v reflect.Value) []byte {
	switch v.Kind() {
	case reflect.Ptr:
		return appendValue(out, v.Elem())
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			out = appendValue(out, v.Index(i))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			out = appendValue(out, v.Field(i))
		}
	case reflect.Float32:
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(v.Float())))
	case reflect.Uint32:
		out = binary.LittleEndian.AppendUint32(out, uint32(v.Uint()))
	case reflect.Int32:
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(v.Int())))
	default:
		panic(fmt.Errorf("unsupported buffer field type: %v", v.Type()))
	}
	return out
}

func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
