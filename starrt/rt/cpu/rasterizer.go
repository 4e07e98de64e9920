package cpu

import (
	"image"
	"image/color"
	"math"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

const (
	DefaultScale        = 0.5
	DefaultMaxParticles = 4000
)

type Options struct {
	// Scale is the internal resolution relative to the output size.
	Scale float64
	// MaxParticles caps how many records are drawn per frame.
	MaxParticles int
}

// Rasterizer draws the particle field in software. It mirrors the GPU program
// through core.Evaluate at a reduced resolution and particle budget, or draws
// a PlexusField when the frame carries one.
type Rasterizer struct {
	opts Options

	frame *image.RGBA
	out   *image.RGBA
	accum []float32

	bgCache *image.RGBA
	bgKey   bgKey
}

type bgKey struct {
	bg   core.Background
	w, h int
}

func New(opts Options) *Rasterizer {
	if opts.Scale <= 0 || opts.Scale > 1 {
		opts.Scale = DefaultScale
	}
	if opts.MaxParticles <= 0 {
		opts.MaxParticles = DefaultMaxParticles
	}
	return &Rasterizer{opts: opts}
}

// Frame is everything one software frame depends on.
type Frame struct {
	Width, Height int
	Records       []core.ParticleRecord
	State         core.FrameState
	Brightness    float32
	Background    core.Background
	ParticleLayer int
	// Plexus replaces the lifecycle records when set.
	Plexus *PlexusField
}

// Render draws f and returns an image of f.Width x f.Height. The returned
// image is reused by the next call.
func (r *Rasterizer) Render(f Frame) *image.RGBA {
	if f.Width <= 0 || f.Height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	w := max(1, int(float64(f.Width)*r.opts.Scale))
	h := max(1, int(float64(f.Height)*r.opts.Scale))
	r.ensureTargets(w, h, f.Width, f.Height)

	fs := f.State
	fs.Resolution = mgl32.Vec2{float32(w), float32(h)}

	bgFirst := f.Background.Enabled && f.Background.LayerIndex <= f.ParticleLayer
	bgLast := f.Background.Enabled && !bgFirst

	for i := range r.accum {
		r.accum[i] = 0
	}
	if bgFirst {
		r.fillBackground(f.Background, w, h)
	}
	if f.Plexus != nil {
		r.drawPlexus(f.Plexus, f.Brightness, float32(w)/float32(f.Width), float32(h)/float32(f.Height), w, h)
	} else {
		r.drawParticles(f.Records, fs, f.Brightness, w, h)
	}
	r.resolve(bgLast, f.Background, w, h)

	if w == f.Width && h == f.Height {
		return r.frame
	}
	draw.ApproxBiLinear.Scale(r.out, r.out.Bounds(), r.frame, r.frame.Bounds(), draw.Src, nil)
	return r.out
}

func (r *Rasterizer) ensureTargets(w, h, outW, outH int) {
	if r.frame == nil || r.frame.Rect.Dx() != w || r.frame.Rect.Dy() != h {
		r.frame = image.NewRGBA(image.Rect(0, 0, w, h))
		r.accum = make([]float32, w*h*3)
	}
	if r.out == nil || r.out.Rect.Dx() != outW || r.out.Rect.Dy() != outH {
		r.out = image.NewRGBA(image.Rect(0, 0, outW, outH))
	}
}

func (r *Rasterizer) background(bg core.Background, w, h int) *image.RGBA {
	key := bgKey{bg: bg, w: w, h: h}
	if r.bgCache != nil && r.bgKey == key {
		return r.bgCache
	}
	g := core.NewGradientUniform(bg, w, h)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		ny := 1 - 2*(float32(y)+0.5)/float32(h)
		for x := 0; x < w; x++ {
			nx := 2*(float32(x)+0.5)/float32(w) - 1
			c := g.At(nx, ny)
			img.SetRGBA(x, y, color.RGBA{R: to8(c[0]), G: to8(c[1]), B: to8(c[2]), A: 255})
		}
	}
	r.bgCache, r.bgKey = img, key
	return img
}

func (r *Rasterizer) fillBackground(bg core.Background, w, h int) {
	img := r.background(bg, w, h)
	a := float32(bg.Alpha)
	for i := 0; i < w*h; i++ {
		r.accum[i*3+0] = float32(img.Pix[i*4+0]) / 255 * a
		r.accum[i*3+1] = float32(img.Pix[i*4+1]) / 255 * a
		r.accum[i*3+2] = float32(img.Pix[i*4+2]) / 255 * a
	}
}

func (r *Rasterizer) drawParticles(records []core.ParticleRecord, fs core.FrameState, brightness float32, w, h int) {
	if len(records) > r.opts.MaxParticles {
		records = records[:r.opts.MaxParticles]
	}
	halfW, halfH := float32(w)/2, float32(h)/2
	for i := range records {
		s := core.Evaluate(records[i], fs, brightness)
		if s.Alpha <= 0 || s.Radius <= 0 {
			continue
		}
		cx := (s.Position[0] + 1) * halfW
		cy := (1 - s.Position[1]) * halfH
		radius := s.Radius * halfH
		if radius < 0.5 {
			radius = 0.5
		}

		x0 := max(0, int(math.Floor(float64(cx-radius))))
		x1 := min(w-1, int(math.Ceil(float64(cx+radius))))
		y0 := max(0, int(math.Floor(float64(cy-radius))))
		y1 := min(h-1, int(math.Ceil(float64(cy+radius))))
		for y := y0; y <= y1; y++ {
			dy := (float32(y) + 0.5 - cy) / radius
			for x := x0; x <= x1; x++ {
				dx := (float32(x) + 0.5 - cx) / radius
				a := core.Falloff(float32(math.Sqrt(float64(dx*dx+dy*dy)))) * s.Alpha
				if a <= 0 {
					continue
				}
				o := (y*w + x) * 3
				r.accum[o+0] += s.Color[0] * a
				r.accum[o+1] += s.Color[1] * a
				r.accum[o+2] += s.Color[2] * a
			}
		}
	}
}

// drawPlexus draws the links first and the nodes over them. sx and sy map
// output pixels to internal pixels.
func (r *Rasterizer) drawPlexus(field *PlexusField, brightness, sx, sy float32, w, h int) {
	nodes := field.Nodes()
	for _, l := range field.Links() {
		a, b := nodes[l.A].Pos, nodes[l.B].Pos
		r.line(a[0]*sx, a[1]*sy, b[0]*sx, b[1]*sy, field.color, l.Alpha*brightness, w, h)
	}
	if len(nodes) > r.opts.MaxParticles {
		nodes = nodes[:r.opts.MaxParticles]
	}
	scale := field.scaleOrOne()
	for _, n := range nodes {
		radius := max(n.Radius*scale*sy, 0.5)
		r.disc(n.Pos[0]*sx, n.Pos[1]*sy, radius, field.NodeColor(n), brightness, w, h)
	}
}

func (r *Rasterizer) add(x, y int, c mgl32.Vec3, a float32, w, h int) {
	if x < 0 || y < 0 || x >= w || y >= h || a <= 0 {
		return
	}
	o := (y*w + x) * 3
	r.accum[o+0] += c[0] * a
	r.accum[o+1] += c[1] * a
	r.accum[o+2] += c[2] * a
}

func (r *Rasterizer) line(x0, y0, x1, y1 float32, c mgl32.Vec3, a float32, w, h int) {
	dx, dy := x1-x0, y1-y0
	steps := int(math.Ceil(math.Max(math.Abs(float64(dx)), math.Abs(float64(dy)))))
	if steps == 0 {
		r.add(int(x0), int(y0), c, a, w, h)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float32(i) / float32(steps)
		r.add(int(x0+dx*t), int(y0+dy*t), c, a, w, h)
	}
}

// disc draws a solid circle with a one pixel soft edge.
func (r *Rasterizer) disc(cx, cy, radius float32, c mgl32.Vec3, a float32, w, h int) {
	x0 := max(0, int(math.Floor(float64(cx-radius))))
	x1 := min(w-1, int(math.Ceil(float64(cx+radius))))
	y0 := max(0, int(math.Floor(float64(cy-radius))))
	y1 := min(h-1, int(math.Ceil(float64(cy+radius))))
	for y := y0; y <= y1; y++ {
		py := float32(y) + 0.5 - cy
		for x := x0; x <= x1; x++ {
			px := float32(x) + 0.5 - cx
			dist := float32(math.Sqrt(float64(px*px + py*py)))
			r.add(x, y, c, mgl32.Clamp(radius-dist+0.5, 0, 1)*a, w, h)
		}
	}
}

func (r *Rasterizer) resolve(bgOver bool, bg core.Background, w, h int) {
	var bgImg *image.RGBA
	a := float32(bg.Alpha)
	if bgOver {
		bgImg = r.background(bg, w, h)
	}
	pix := r.frame.Pix
	for i := 0; i < w*h; i++ {
		cr, cg, cb := r.accum[i*3], r.accum[i*3+1], r.accum[i*3+2]
		if bgImg != nil {
			cr = cr*(1-a) + float32(bgImg.Pix[i*4+0])/255*a
			cg = cg*(1-a) + float32(bgImg.Pix[i*4+1])/255*a
			cb = cb*(1-a) + float32(bgImg.Pix[i*4+2])/255*a
		}
		pix[i*4+0] = to8(cr)
		pix[i*4+1] = to8(cg)
		pix[i*4+2] = to8(cb)
		pix[i*4+3] = 255
	}
}

func to8(v float32) uint8 {
	return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
}
