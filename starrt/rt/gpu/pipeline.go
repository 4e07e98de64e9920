package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/shaders"
)

// Sources are the WGSL programs the pipelines are built from.
type Sources struct {
	Particles  string
	Background string
}

func DefaultSources() Sources {
	return Sources{
		Particles:  shaders.ParticlesWGSL,
		Background: shaders.BackgroundWGSL,
	}
}

// Pipeline is the compiled render state for the particle and background layers.
type Pipeline struct {
	Particles        *wgpu.RenderPipeline
	ParticleLayout   *wgpu.BindGroupLayout
	Background       *wgpu.RenderPipeline
	BackgroundLayout *wgpu.BindGroupLayout
	Format           wgpu.TextureFormat
	Layout           core.Layout
	Sources          Sources
}

// Compile builds both programs for the surface format. Failures carry the
// stage they happened in.
func Compile(device *wgpu.Device, format wgpu.TextureFormat, src Sources, layout core.Layout) (p *Pipeline, err error) {
	p = &Pipeline{Format: format, Layout: layout, Sources: src}
	defer func() {
		if r := recover(); r != nil {
			p.Release()
			p, err = nil, &CompileError{Program: "particles", Stage: "pipeline", Err: recovered(r)}
		}
	}()

	if err := p.compileParticles(device, src.Particles); err != nil {
		p.Release()
		return nil, err
	}
	if err := p.compileBackground(device, src.Background); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) compileParticles(device *wgpu.Device, src string) error {
	const program = "particles"
	fail := func(stage string, err error) error {
		return &CompileError{Program: program, Stage: stage, Err: err}
	}

	code, err := PrepareParticleSource(src, p.Layout)
	if err != nil {
		return fail("layout", err)
	}
	instanceLayout, err := VertexBufferLayout(p.Layout, wgpu.VertexStepModeInstance)
	if err != nil {
		return fail("layout", err)
	}

	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "ParticleShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return fail("shader", err)
	}
	defer shader.Release()

	p.ParticleLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "ParticleFrameBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: core.FrameStateSize,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: core.BrightnessUniformSize,
				},
			},
		},
	})
	if err != nil {
		return fail("bind-group-layout", err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.ParticleLayout},
	})
	if err != nil {
		return fail("pipeline-layout", err)
	}
	defer pipelineLayout.Release()

	p.Particles, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "ParticlePipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				instanceLayout,
				{
					ArrayStride: 8,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{
							Format:         wgpu.VertexFormatFloat32x2,
							Offset:         0,
							ShaderLocation: core.QuadCornerLocation,
						},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    p.Format,
					WriteMask: wgpu.ColorWriteMaskAll,
					// additive colour, standard alpha accumulation
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOne,
						},
						Alpha: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
					},
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleStrip,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fail("pipeline", err)
	}
	return nil
}

func (p *Pipeline) compileBackground(device *wgpu.Device, src string) error {
	const program = "background"
	fail := func(stage string, err error) error {
		return &CompileError{Program: program, Stage: stage, Err: err}
	}

	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "BackgroundShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return fail("shader", err)
	}
	defer shader.Release()

	p.BackgroundLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "BackgroundBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: core.GradientUniformSize,
				},
			},
		},
	})
	if err != nil {
		return fail("bind-group-layout", err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.BackgroundLayout},
	})
	if err != nil {
		return fail("pipeline-layout", err)
	}
	defer pipelineLayout.Release()

	p.Background, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "BackgroundPipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    p.Format,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
						Alpha: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
					},
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fail("pipeline", err)
	}
	return nil
}

func (p *Pipeline) Release() {
	if p == nil {
		return
	}
	if p.Particles != nil {
		p.Particles.Release()
	}
	if p.ParticleLayout != nil {
		p.ParticleLayout.Release()
	}
	if p.Background != nil {
		p.Background.Release()
	}
	if p.BackgroundLayout != nil {
		p.BackgroundLayout.Release()
	}
	*p = Pipeline{Format: p.Format, Layout: p.Layout, Sources: p.Sources}
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline{format=%v stride=%d}", p.Format, p.Layout.Stride)
}
