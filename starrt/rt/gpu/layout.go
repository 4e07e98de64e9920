package gpu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/shaders"
)

// InstanceStructName is the WGSL vertex input struct of the particle program.
const InstanceStructName = "ParticleInstance"

func parseFormat(name string) (wgpu.VertexFormat, error) {
	switch name {
	case "float":
		return wgpu.VertexFormatFloat32, nil
	case "float2":
		return wgpu.VertexFormatFloat32x2, nil
	case "float3":
		return wgpu.VertexFormatFloat32x3, nil
	case "float4":
		return wgpu.VertexFormatFloat32x4, nil
	}
	return 0, fmt.Errorf("unsupported vertex layout format: %s", name)
}

// VertexBufferLayout turns a record layout into a wgpu buffer layout.
func VertexBufferLayout(l core.Layout, step wgpu.VertexStepMode) (wgpu.VertexBufferLayout, error) {
	attributes := make([]wgpu.VertexAttribute, 0, len(l.Fields))
	for _, f := range l.Fields {
		format, err := parseFormat(f.Format)
		if err != nil {
			return wgpu.VertexBufferLayout{}, err
		}
		attributes = append(attributes, wgpu.VertexAttribute{
			Format:         format,
			Offset:         f.Offset,
			ShaderLocation: f.Location,
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: l.Stride,
		StepMode:    step,
		Attributes:  attributes,
	}, nil
}

// PrepareParticleSource injects the generated instance struct and checks that
// the resulting program agrees with the layout.
func PrepareParticleSource(src string, l core.Layout) (string, error) {
	code := strings.Replace(src, shaders.ParticleInstanceDirective, l.WGSLStruct(InstanceStructName), 1)
	if err := ValidateLayout(code, l); err != nil {
		return "", err
	}
	return code, nil
}

var (
	structRe   = regexp.MustCompile(`(?s)struct\s+` + InstanceStructName + `\s*\{(.*?)\}`)
	locationRe = regexp.MustCompile(`@location\((\d+)\)\s*(\w+)\s*:\s*([\w<>]+)`)
)

// ValidateLayout compares the ParticleInstance struct of a WGSL program with
// the record layout, location by location.
func ValidateLayout(code string, l core.Layout) error {
	m := structRe.FindStringSubmatch(code)
	if m == nil {
		return fmt.Errorf("struct %s not found", InstanceStructName)
	}
	declared := map[uint32]string{}
	for _, loc := range locationRe.FindAllStringSubmatch(m[1], -1) {
		n, err := strconv.Atoi(loc[1])
		if err != nil {
			return fmt.Errorf("bad location %q", loc[1])
		}
		declared[uint32(n)] = loc[3]
	}
	for _, f := range l.Fields {
		typ, ok := declared[f.Location]
		if !ok {
			return fmt.Errorf("location %d (%s) missing from shader", f.Location, f.Name)
		}
		if want := core.WGSLType(f.Format); typ != want {
			return fmt.Errorf("location %d (%s): shader declares %s, record has %s", f.Location, f.Name, typ, want)
		}
		delete(declared, f.Location)
	}
	for loc, typ := range declared {
		return fmt.Errorf("shader declares location %d (%s) not present in the record", loc, typ)
	}
	return nil
}
