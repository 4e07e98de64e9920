package present

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimScreen(t *testing.T, cols, rows int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(cols, rows)
	return screen
}

func TestTermPresenterSizeDoublesRows(t *testing.T) {
	screen := newSimScreen(t, 80, 24)
	p := NewTermPresenter(screen)
	defer p.Close()

	w, h := p.Size()
	assert.Equal(t, 80, w)
	assert.Equal(t, 48, h)
}

func TestTermPresenterHalfBlocks(t *testing.T) {
	screen := newSimScreen(t, 4, 2)
	p := NewTermPresenter(screen)
	defer p.Close()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.SetRGBA(x, 0, color.RGBA{R: 255, A: 255})
		img.SetRGBA(x, 1, color.RGBA{B: 255, A: 255})
	}
	require.NoError(t, p.Present(img))

	r, _, style, _ := screen.GetContent(1, 0)
	assert.Equal(t, halfBlock, r)
	fg, bg, _ := style.Decompose()
	assert.Equal(t, tcell.NewRGBColor(255, 0, 0), fg)
	assert.Equal(t, tcell.NewRGBColor(0, 0, 255), bg)
}

func TestTermPresenterRescalesMismatchedFrames(t *testing.T) {
	screen := newSimScreen(t, 10, 5)
	p := NewTermPresenter(screen)
	defer p.Close()

	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	require.NotPanics(t, func() { require.NoError(t, p.Present(img)) })
	require.NotNil(t, p.scaled)
	assert.Equal(t, 10, p.scaled.Bounds().Dx())
	assert.Equal(t, 10, p.scaled.Bounds().Dy())
}

func TestTermPresenterNoticeExpires(t *testing.T) {
	screen := newSimScreen(t, 20, 3)
	p := NewTermPresenter(screen)
	defer p.Close()

	now := time.Unix(100, 0)
	p.now = func() time.Time { return now }
	p.Notify("cpu mode", time.Second)

	img := image.NewRGBA(image.Rect(0, 0, 20, 6))
	require.NoError(t, p.Present(img))
	r, _, _, _ := screen.GetContent(0, 2)
	assert.Equal(t, 'c', r)

	now = now.Add(2 * time.Second)
	require.NoError(t, p.Present(img))
	r, _, _, _ = screen.GetContent(0, 2)
	assert.Equal(t, halfBlock, r)
}
