// Package render draws a canvas scene to PNG for export and previews.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"reqflow/internal/canvas"
	"reqflow/internal/geom"
)

// Options configures PNG rendering.
type Options struct {
	Screen      geom.Size // output size in pixels; zero uses the canvas bounds
	GridSpacing float64   // world units between background grid lines; 0 disables
	Supersample int
	FontSize    float64
}

// DefaultOptions returns the export defaults.
func DefaultOptions() Options {
	return Options{GridSpacing: 20, Supersample: 2, FontSize: 13}
}

var (
	colorBackground = color.RGBA{250, 250, 252, 255}
	colorGrid       = color.RGBA{230, 232, 238, 255}
	colorNode       = color.RGBA{255, 255, 255, 255}
	colorTrigger    = color.RGBA{232, 245, 233, 255} // #e8f5e9
	colorBorder     = color.RGBA{96, 104, 120, 255}
	colorText       = color.RGBA{51, 51, 51, 255} // #333
	colorConnector  = color.RGBA{22, 119, 255, 255}
	colorFallback   = color.RGBA{230, 81, 0, 255} // #e65100
	colorAnchor     = color.RGBA{22, 119, 255, 255}
)

type renderContext struct {
	img   *image.RGBA
	scale float64 // world-to-pixel factor including supersampling
	offX  float64
	offY  float64
	ss    float64
	face  font.Face
}

// toPx maps a world point to supersampled pixel coordinates.
func (c *renderContext) toPx(p geom.Point) (float64, float64) {
	return (p.X - c.offX) * c.scale, (p.Y - c.offY) * c.scale
}

// PNG renders s to w. The scene's view decides which part of the world is
// shown; drawing happens at Supersample times the output size and is scaled
// down with Catmull-Rom.
func PNG(w io.Writer, s *canvas.Scene, opts Options) error {
	screen := opts.Screen
	if !screen.Valid() {
		screen = s.Bounds
	}
	if !screen.Valid() {
		return fmt.Errorf("render: no output size")
	}
	ss := opts.Supersample
	if ss < 1 {
		ss = 1
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 13
	}

	large, err := renderLarge(s, screen, ss, opts)
	if err != nil {
		return err
	}
	out := image.NewRGBA(image.Rect(0, 0, int(screen.W), int(screen.H)))
	draw.CatmullRom.Scale(out, out.Bounds(), large, large.Bounds(), draw.Over, nil)
	return png.Encode(w, out)
}

func renderLarge(s *canvas.Scene, screen geom.Size, ss int, opts Options) (*image.RGBA, error) {
	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    opts.FontSize * float64(ss),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	defer face.Close()

	view := s.View
	zoom := view.Scale
	if zoom <= 0 {
		zoom = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, int(screen.W)*ss, int(screen.H)*ss))
	ctx := &renderContext{
		img:   img,
		scale: zoom * float64(ss),
		offX:  view.OffsetX,
		offY:  view.OffsetY,
		ss:    float64(ss),
		face:  face,
	}

	draw.Draw(img, img.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	if opts.GridSpacing > 0 {
		xs, ys := view.GridLines(screen, opts.GridSpacing)
		for _, x := range xs {
			px, _ := ctx.toPx(geom.Pt(x, 0))
			fillRect(img, px, 0, px+ctx.ss, float64(img.Bounds().Dy()), colorGrid)
		}
		for _, y := range ys {
			_, py := ctx.toPx(geom.Pt(0, y))
			fillRect(img, 0, py, float64(img.Bounds().Dx()), py+ctx.ss, colorGrid)
		}
	}

	for _, c := range s.Connectors {
		if !c.Visible {
			continue
		}
		col := colorConnector
		if c.Fallback {
			col = colorFallback
		}
		for i := 1; i < len(c.Points); i++ {
			drawSegment(ctx, c.Points[i-1], c.Points[i], 2*ctx.ss, col)
		}
		fillTriangle(ctx, c.Arrow, col)
	}

	for _, n := range s.Nodes {
		if !n.Visible {
			continue
		}
		fill := colorNode
		if n.Kind == canvas.KindTrigger {
			fill = colorTrigger
		}
		x0, y0 := ctx.toPx(geom.Pt(n.Rect.Left(), n.Rect.Top()))
		x1, y1 := ctx.toPx(geom.Pt(n.Rect.Right(), n.Rect.Bottom()))
		b := 2 * ctx.ss
		fillRect(img, x0, y0, x1, y1, colorBorder)
		fillRect(img, x0+b, y0+b, x1-b, y1-b, fill)
		cx, cy := ctx.toPx(n.Rect.Center())
		drawTextCentered(ctx, int(cx), int(cy), n.Label, colorText)
	}

	for _, a := range s.Anchors {
		cx, cy := ctx.toPx(a.Point)
		fillCircle(img, cx, cy, 4*ctx.ss, colorAnchor)
	}
	return img, nil
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 float64, c color.Color) {
	r := image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1)))
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawSegment draws an axis-aligned segment as a filled rect of the given
// thickness.
func drawSegment(ctx *renderContext, a, b geom.Point, thickness float64, c color.Color) {
	ax, ay := ctx.toPx(a)
	bx, by := ctx.toPx(b)
	h := thickness / 2
	fillRect(ctx.img, math.Min(ax, bx)-h, math.Min(ay, by)-h, math.Max(ax, bx)+h, math.Max(ay, by)+h, c)
}

// fillTriangle scan-fills the arrowhead.
func fillTriangle(ctx *renderContext, tri [3]geom.Point, c color.Color) {
	var px [3][2]float64
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, p := range tri {
		x, y := ctx.toPx(p)
		px[i] = [2]float64{x, y}
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}
	for y := math.Floor(minY); y <= math.Ceil(maxY); y++ {
		sy := y + 0.5
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < 3; i++ {
			p, q := px[i], px[(i+1)%3]
			if (p[1] <= sy && q[1] > sy) || (q[1] <= sy && p[1] > sy) {
				x := p[0] + (sy-p[1])*(q[0]-p[0])/(q[1]-p[1])
				lo = math.Min(lo, x)
				hi = math.Max(hi, x)
			}
		}
		if lo <= hi {
			fillRect(ctx.img, lo, y, hi, y+1, c)
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy, r float64, c color.Color) {
	for y := math.Floor(cy - r); y <= math.Ceil(cy+r); y++ {
		dy := y + 0.5 - cy
		if math.Abs(dy) > r {
			continue
		}
		dx := math.Sqrt(r*r - dy*dy)
		fillRect(img, cx-dx, y, cx+dx, y+1, c)
	}
}

func drawTextCentered(ctx *renderContext, x, y int, text string, c color.Color) {
	if text == "" {
		return
	}
	width := font.MeasureString(ctx.face, text).Ceil()
	ascent := ctx.face.Metrics().Ascent.Ceil()
	d := &font.Drawer{
		Dst:  ctx.img,
		Src:  image.NewUniform(c),
		Face: ctx.face,
		Dot:  fixed.Point26_6{X: fixed.I(x - width/2), Y: fixed.I(y + ascent/3)},
	}
	d.DrawString(text)
}
