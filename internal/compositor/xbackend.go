package compositor

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/1broseidon/tessera/internal/geom"
)

// maxImageBytes bounds the payload of a single PutImage request.
const maxImageBytes = 128 * 1024

// maskCacheLimit caps each mask cache; the cache is dropped when exceeded.
const maskCacheLimit = 64

type xwin struct {
	damage  damage.Damage
	pixmap  xproto.Pixmap
	picture render.Picture
	size    geom.Size
}

type maskKey struct {
	size   geom.Size
	shadow bool
}

// XBackend composites with the Composite, Damage, XFixes and Render
// extensions onto the composite overlay window.
type XBackend struct {
	xu       *xgbutil.XUtil
	conn     *xgb.Conn
	root     xproto.Window
	settings Settings
	bg       render.Color

	visualFormats map[xproto.Visualid]render.Pictformat
	alphaFormat   render.Pictformat
	rootFormat    render.Pictformat
	argbVisual    xproto.Visualid

	overlay    xproto.Window
	overlayPic render.Picture
	bufferPix  xproto.Pixmap
	bufferPic  render.Picture
	black      render.Picture
	screen     geom.Rect

	windows map[xproto.Window]*xwin
	masks   map[maskKey]render.Picture
}

// NewXBackend returns a backend for the default screen of xu. background is
// a hex color painted where no window covers the screen.
func NewXBackend(xu *xgbutil.XUtil, settings Settings, background string) *XBackend {
	b := &XBackend{
		xu:       xu,
		conn:     xu.Conn(),
		root:     xu.RootWin(),
		settings: settings,
		windows:  make(map[xproto.Window]*xwin),
		masks:    make(map[maskKey]render.Picture),
	}
	if c, err := colorful.Hex(background); err == nil {
		r, g, bl := c.RGB255()
		b.bg = render.Color{Red: uint16(r) * 0x101, Green: uint16(g) * 0x101, Blue: uint16(bl) * 0x101, Alpha: 0xffff}
	} else {
		b.bg = render.Color{Alpha: 0xffff}
	}
	return b
}

// Overlay is the composite overlay window, 0 until Start.
func (b *XBackend) Overlay() xproto.Window { return b.overlay }

// ARGBVisual reports the 32-bit visual found by Probe.
func (b *XBackend) ARGBVisual() xproto.Visualid { return b.argbVisual }

// Probe initializes the extensions and looks for a 32-bit TrueColor visual.
func (b *XBackend) Probe() (Capabilities, error) {
	var caps Capabilities
	if composite.Init(b.conn) == nil {
		if _, err := composite.QueryVersion(b.conn, 0, 4).Reply(); err == nil {
			caps.Composite = true
		}
	}
	// Damage depends on XFixes regions.
	if xfixes.Init(b.conn) == nil && damage.Init(b.conn) == nil {
		_, xerr := xfixes.QueryVersion(b.conn, 5, 0).Reply()
		_, derr := damage.QueryVersion(b.conn, 1, 1).Reply()
		caps.Damage = xerr == nil && derr == nil
	}
	if render.Init(b.conn) == nil {
		if _, err := render.QueryVersion(b.conn, 0, 11).Reply(); err == nil {
			caps.Render = true
		}
	}
	b.argbVisual = findARGBVisual(b.xu.Screen())
	caps.ARGBVisual = b.argbVisual
	if !caps.Render {
		return caps, nil
	}
	if err := b.loadFormats(); err != nil {
		return caps, err
	}
	return caps, nil
}

func findARGBVisual(screen *xproto.ScreenInfo) xproto.Visualid {
	for _, d := range screen.AllowedDepths {
		if d.Depth != 32 {
			continue
		}
		for _, v := range d.Visuals {
			if v.Class == xproto.VisualClassTrueColor {
				return v.VisualId
			}
		}
	}
	return 0
}

func (b *XBackend) loadFormats() error {
	reply, err := render.QueryPictFormats(b.conn).Reply()
	if err != nil {
		return fmt.Errorf("query picture formats: %w", err)
	}
	b.visualFormats = make(map[xproto.Visualid]render.Pictformat)
	for _, s := range reply.Screens {
		for _, d := range s.Depths {
			for _, v := range d.Visuals {
				b.visualFormats[v.Visual] = v.Format
			}
		}
	}
	for _, f := range reply.Formats {
		if f.Type == render.PictTypeDirect && f.Depth == 8 && f.Direct.AlphaMask == 0xff && f.Direct.RedMask == 0 {
			b.alphaFormat = f.Id
			break
		}
	}
	b.rootFormat = b.visualFormats[b.xu.Screen().RootVisual]
	if b.alphaFormat == 0 || b.rootFormat == 0 {
		return fmt.Errorf("missing picture formats (a8=%d root=%d)", b.alphaFormat, b.rootFormat)
	}
	return nil
}

// Start redirects top-level windows and creates the overlay and back buffer.
func (b *XBackend) Start() error {
	if err := composite.RedirectSubwindowsChecked(b.conn, b.root, composite.RedirectManual).Check(); err != nil {
		return fmt.Errorf("redirect subwindows: %w", err)
	}
	ov, err := composite.GetOverlayWindow(b.conn, b.root).Reply()
	if err != nil {
		return fmt.Errorf("get overlay window: %w", err)
	}
	b.overlay = ov.OverlayWin

	// The overlay must not take input.
	region, err := xfixes.NewRegionId(b.conn)
	if err != nil {
		return err
	}
	xfixes.CreateRegion(b.conn, region, nil)
	xfixes.SetWindowShapeRegion(b.conn, b.overlay, shape.SkInput, 0, 0, region)
	xfixes.DestroyRegion(b.conn, region)

	scr := b.xu.Screen()
	b.screen = geom.R(0, 0, int(scr.WidthInPixels), int(scr.HeightInPixels))

	if b.overlayPic, err = b.picture(xproto.Drawable(b.overlay), b.rootFormat, true); err != nil {
		return err
	}
	if b.bufferPix, err = xproto.NewPixmapId(b.conn); err != nil {
		return err
	}
	xproto.CreatePixmap(b.conn, scr.RootDepth, b.bufferPix, xproto.Drawable(b.root),
		scr.WidthInPixels, scr.HeightInPixels)
	if b.bufferPic, err = b.picture(xproto.Drawable(b.bufferPix), b.rootFormat, false); err != nil {
		return err
	}
	if b.black, err = render.NewPictureId(b.conn); err != nil {
		return err
	}
	render.CreateSolidFill(b.conn, b.black, render.Color{Alpha: 0xffff})
	return nil
}

func (b *XBackend) picture(d xproto.Drawable, format render.Pictformat, inferiors bool) (render.Picture, error) {
	pic, err := render.NewPictureId(b.conn)
	if err != nil {
		return 0, err
	}
	var mask uint32
	var values []uint32
	if inferiors {
		mask = render.CpSubwindowMode
		values = []uint32{xproto.SubwindowModeIncludeInferiors}
	}
	render.CreatePicture(b.conn, pic, d, format, mask, values)
	return pic, nil
}

// Stop frees server resources and returns the screen to normal drawing.
func (b *XBackend) Stop() {
	for key, pic := range b.masks {
		render.FreePicture(b.conn, pic)
		delete(b.masks, key)
	}
	for _, pic := range []render.Picture{b.black, b.bufferPic, b.overlayPic} {
		if pic != 0 {
			render.FreePicture(b.conn, pic)
		}
	}
	if b.bufferPix != 0 {
		xproto.FreePixmap(b.conn, b.bufferPix)
	}
	if b.overlay != 0 {
		composite.ReleaseOverlayWindow(b.conn, b.root)
	}
	composite.UnredirectSubwindows(b.conn, b.root, composite.RedirectManual)
}

// Track creates a damage object for id.
func (b *XBackend) Track(id xproto.Window) error {
	dmg, err := damage.NewDamageId(b.conn)
	if err != nil {
		return err
	}
	if err := damage.CreateChecked(b.conn, dmg, xproto.Drawable(id), damage.ReportLevelDeltaRectangles).Check(); err != nil {
		return fmt.Errorf("create damage for %d: %w", id, err)
	}
	b.windows[id] = &xwin{damage: dmg}
	return nil
}

// Untrack releases the damage object and picture of id.
func (b *XBackend) Untrack(id xproto.Window) {
	w, ok := b.windows[id]
	if !ok {
		return
	}
	delete(b.windows, id)
	damage.Destroy(b.conn, w.damage)
	b.releasePixmap(w)
}

// Invalidate drops the named pixmap of id so the next draw names a new one.
func (b *XBackend) Invalidate(id xproto.Window) {
	if w, ok := b.windows[id]; ok {
		b.releasePixmap(w)
	}
}

func (b *XBackend) releasePixmap(w *xwin) {
	if w.picture != 0 {
		render.FreePicture(b.conn, w.picture)
		w.picture = 0
	}
	if w.pixmap != 0 {
		xproto.FreePixmap(b.conn, w.pixmap)
		w.pixmap = 0
	}
}

// Stacking returns root children bottom to top.
func (b *XBackend) Stacking() ([]xproto.Window, error) {
	tree, err := xproto.QueryTree(b.conn, b.root).Reply()
	if err != nil {
		return nil, err
	}
	return tree.Children, nil
}

// BeginFrame clips the back buffer and paints the background.
func (b *XBackend) BeginFrame(clips []geom.Rect) error {
	rects := xrects(clips)
	render.SetPictureClipRectangles(b.conn, b.bufferPic, 0, 0, rects)
	render.FillRectangles(b.conn, render.PictOpSrc, b.bufferPic, b.bg, rects)
	return nil
}

// DrawShadow composites the cached shadow mask for the frame size.
func (b *XBackend) DrawShadow(id xproto.Window, frame geom.Rect) error {
	ext := ShadowExtent(frame, b.settings.ShadowRadius, b.settings.ShadowOffset)
	mask, err := b.mask(maskKey{size: frame.Size(), shadow: true})
	if err != nil {
		return err
	}
	render.Composite(b.conn, render.PictOpOver, b.black, mask, b.bufferPic,
		0, 0, 0, 0, int16(ext.X), int16(ext.Y), uint16(ext.Width), uint16(ext.Height))
	return nil
}

// DrawWindow composites the named pixmap of id, through the corner mask when
// rounded, then clears its server-side damage.
func (b *XBackend) DrawWindow(id xproto.Window, frame geom.Rect, rounded bool) error {
	w, ok := b.windows[id]
	if !ok {
		return fmt.Errorf("window %d not tracked", id)
	}
	if err := b.ensurePicture(id, w, frame.Size()); err != nil {
		return err
	}
	var mask render.Picture
	if rounded && b.settings.CornerRadius > 0 {
		m, err := b.mask(maskKey{size: frame.Size()})
		if err != nil {
			return err
		}
		mask = m
	}
	render.Composite(b.conn, render.PictOpOver, w.picture, mask, b.bufferPic,
		0, 0, 0, 0, int16(frame.X), int16(frame.Y), uint16(frame.Width), uint16(frame.Height))
	damage.Subtract(b.conn, w.damage, 0, 0)
	return nil
}

func (b *XBackend) ensurePicture(id xproto.Window, w *xwin, size geom.Size) error {
	if w.picture != 0 && w.size == size {
		return nil
	}
	b.releasePixmap(w)
	attrs, err := xproto.GetWindowAttributes(b.conn, id).Reply()
	if err != nil {
		return fmt.Errorf("window attributes %d: %w", id, err)
	}
	if attrs.MapState != xproto.MapStateViewable {
		return fmt.Errorf("window %d not viewable", id)
	}
	format, ok := b.visualFormats[attrs.Visual]
	if !ok {
		return fmt.Errorf("no picture format for visual %d", attrs.Visual)
	}
	pix, err := xproto.NewPixmapId(b.conn)
	if err != nil {
		return err
	}
	if err := composite.NameWindowPixmapChecked(b.conn, id, pix).Check(); err != nil {
		return fmt.Errorf("name window pixmap %d: %w", id, err)
	}
	pic, err := b.picture(xproto.Drawable(pix), format, true)
	if err != nil {
		xproto.FreePixmap(b.conn, pix)
		return err
	}
	w.pixmap, w.picture, w.size = pix, pic, size
	return nil
}

// Present copies the clipped back buffer onto the overlay.
func (b *XBackend) Present(clips []geom.Rect) error {
	for _, c := range clips {
		c = c.Intersect(b.screen)
		if c.Empty() {
			continue
		}
		render.Composite(b.conn, render.PictOpSrc, b.bufferPic, 0, b.overlayPic,
			int16(c.X), int16(c.Y), 0, 0, int16(c.X), int16(c.Y), uint16(c.Width), uint16(c.Height))
	}
	return nil
}

// SetSettings replaces the settings and drops the masks built from the old
// ones.
func (b *XBackend) SetSettings(s Settings) {
	b.settings = s
	for k, pic := range b.masks {
		render.FreePicture(b.conn, pic)
		delete(b.masks, k)
	}
}

func (b *XBackend) mask(key maskKey) (render.Picture, error) {
	if pic, ok := b.masks[key]; ok {
		return pic, nil
	}
	if len(b.masks) >= maskCacheLimit {
		for k, pic := range b.masks {
			render.FreePicture(b.conn, pic)
			delete(b.masks, k)
		}
	}
	var img *image.Alpha
	if key.shadow {
		img = ShadowMask(key.size, b.settings.ShadowRadius, b.settings.CornerRadius, b.settings.ShadowOpacity)
	} else {
		img = CornerMask(key.size, b.settings.CornerRadius)
	}
	pic, err := b.uploadAlpha(img)
	if err != nil {
		return 0, err
	}
	b.masks[key] = pic
	return pic, nil
}

// uploadAlpha copies img into a depth-8 pixmap and wraps it in a picture.
func (b *XBackend) uploadAlpha(img *image.Alpha) (render.Picture, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("empty mask %dx%d", w, h)
	}
	pix, err := xproto.NewPixmapId(b.conn)
	if err != nil {
		return 0, err
	}
	if err := xproto.CreatePixmapChecked(b.conn, 8, pix, xproto.Drawable(b.root), uint16(w), uint16(h)).Check(); err != nil {
		return 0, fmt.Errorf("create mask pixmap: %w", err)
	}
	defer xproto.FreePixmap(b.conn, pix)

	gc, err := xproto.NewGcontextId(b.conn)
	if err != nil {
		return 0, err
	}
	xproto.CreateGC(b.conn, gc, xproto.Drawable(pix), 0, nil)
	defer xproto.FreeGC(b.conn, gc)

	data, stride := alphaRows(img)
	rows := max(1, maxImageBytes/stride)
	for y := 0; y < h; y += rows {
		n := min(rows, h-y)
		xproto.PutImage(b.conn, xproto.ImageFormatZPixmap, xproto.Drawable(pix), gc,
			uint16(w), uint16(n), 0, int16(y), 0, 8, data[y*stride:(y+n)*stride])
	}
	return b.picture(xproto.Drawable(pix), b.alphaFormat, false)
}

func xrects(rs []geom.Rect) []xproto.Rectangle {
	out := make([]xproto.Rectangle, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.XRect())
	}
	return out
}
