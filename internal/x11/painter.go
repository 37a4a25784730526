package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xgraphics"

	"github.com/1broseidon/tessera/internal/model"
)

// Painter uploads rendered titlebar images and keeps them as the window
// background so exposures repaint without a redraw.
type Painter struct {
	c      *Connection
	images map[xproto.Window]*xgraphics.Image
}

// NewPainter returns a painter drawing through c.
func (c *Connection) NewPainter() *Painter {
	return &Painter{c: c, images: make(map[xproto.Window]*xgraphics.Image)}
}

// Paint replaces the titlebar's pixmap with img.
func (p *Painter) Paint(tb *model.Titlebar, img image.Image) error {
	p.Forget(tb.ID)
	ximg := xgraphics.NewConvert(p.c.XUtil, img)
	if err := ximg.XSurfaceSet(tb.ID); err != nil {
		ximg.Destroy()
		return fmt.Errorf("failed to create titlebar pixmap: %w", err)
	}
	ximg.XDraw()
	ximg.XPaint(tb.ID)
	p.images[tb.ID] = ximg
	tb.Rendered(ximg.Pixmap)
	p.c.MarkDirty()
	return nil
}

// Repaint shows the cached pixmap again. It reports false when the titlebar
// needs a fresh render.
func (p *Painter) Repaint(tb *model.Titlebar) bool {
	ximg, ok := p.images[tb.ID]
	if !ok || !tb.PixmapValid() {
		return false
	}
	ximg.XPaint(tb.ID)
	p.c.MarkDirty()
	return true
}

// Clear blanks the titlebar to its background.
func (p *Painter) Clear(tb *model.Titlebar) {
	xproto.ClearArea(p.c.XUtil.Conn(), false, tb.ID, 0, 0, 0, 0)
	p.c.MarkDirty()
}

// Forget frees the pixmap of a titlebar.
func (p *Painter) Forget(id xproto.Window) {
	if ximg, ok := p.images[id]; ok {
		ximg.Destroy()
		delete(p.images, id)
	}
}
