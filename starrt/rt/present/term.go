package present

import (
	"image"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/image/draw"
)

// Presenter displays finished software frames.
type Presenter interface {
	// Size reports the pixel size frames should be rendered at.
	Size() (int, int)
	Present(img *image.RGBA) error
	Close()
}

const halfBlock = '▀'

// TermPresenter draws frames into a terminal using upper half blocks, so
// each cell carries two vertically stacked pixels.
type TermPresenter struct {
	screen tcell.Screen

	mu       sync.Mutex
	notice   string
	expires  time.Time
	now      func() time.Time
	scaled   *image.RGBA
	noticeSt tcell.Style
}

func NewTermPresenter(screen tcell.Screen) *TermPresenter {
	return &TermPresenter{
		screen:   screen,
		now:      time.Now,
		noticeSt: tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkRed),
	}
}

func (p *TermPresenter) Size() (int, int) {
	cols, rows := p.screen.Size()
	return cols, rows * 2
}

// Notify shows msg on the bottom row for d.
func (p *TermPresenter) Notify(msg string, d time.Duration) {
	p.mu.Lock()
	p.notice = msg
	p.expires = p.now().Add(d)
	p.mu.Unlock()
}

func (p *TermPresenter) Present(img *image.RGBA) error {
	cols, rows := p.screen.Size()
	if cols <= 0 || rows <= 0 {
		return nil
	}
	w, h := cols, rows*2
	src := img
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		if p.scaled == nil || p.scaled.Rect.Dx() != w || p.scaled.Rect.Dy() != h {
			p.scaled = image.NewRGBA(image.Rect(0, 0, w, h))
		}
		draw.NearestNeighbor.Scale(p.scaled, p.scaled.Bounds(), img, b, draw.Src, nil)
		src = p.scaled
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			top := src.RGBAAt(x, y*2)
			bottom := src.RGBAAt(x, y*2+1)
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
				Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
			p.screen.SetContent(x, y, halfBlock, nil, style)
		}
	}
	p.drawNotice(cols, rows)
	p.screen.Show()
	return nil
}

func (p *TermPresenter) drawNotice(cols, rows int) {
	p.mu.Lock()
	msg, expires := p.notice, p.expires
	if msg != "" && !p.now().Before(expires) {
		p.notice = ""
		msg = ""
	}
	p.mu.Unlock()
	if msg == "" {
		return
	}
	x := 0
	for _, r := range msg {
		if x >= cols {
			break
		}
		p.screen.SetContent(x, rows-1, r, nil, p.noticeSt)
		x++
	}
}

// Close blanks the screen. Finalizing it is left to its owner.
func (p *TermPresenter) Close() {
	p.screen.Clear()
	p.screen.Show()
}
