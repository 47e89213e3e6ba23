package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/coursova/lichess-stats-bot/internal/domain"
	"github.com/coursova/lichess-stats-bot/pkg/statsdto"
)

// Renderer plots a rating-vs-time series as a PNG. The plot geometry is
// built as SVG and rasterized; axis text is drawn on top of the raster.
// Only observed points are plotted, no interpolation is invented for gaps.
type Renderer struct {
	width  int
	height int
}

const (
	defaultWidth  = 900
	defaultHeight = 480

	marginLeft   = 72
	marginRight  = 28
	marginTop    = 56
	marginBottom = 64
)

var (
	backgroundColor = color.NRGBA{R: 18, G: 21, B: 34, A: 255}
	titleColor      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	axisTextColor   = color.NRGBA{R: 168, G: 176, B: 204, A: 255}

	plotFill   = "#1c1f2e"
	gridStroke = "#2e3450"
	lineStroke = "#4f8fea"
	dotFill    = "#8fc1ff"
)

func NewRenderer() *Renderer {
	return &Renderer{width: defaultWidth, height: defaultHeight}
}

// Render encodes the series as a PNG. An empty series yields the NoData
// outcome so callers can tell "nothing to plot" from a rendering failure.
func (r *Renderer) Render(points []domain.RatingPoint, from, to time.Time, label string) ([]byte, error) {
	points = collapseDuplicates(points)
	if len(points) == 0 {
		return nil, statsdto.NoData("no rating points to plot")
	}
	if to.Before(from) {
		return nil, statsdto.InvalidRange("chart range start is after its end")
	}

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	plot := image.Rect(marginLeft, marginTop, r.width-marginRight, r.height-marginBottom)
	lo, hi := ratingBounds(points)

	svgDoc := r.plotSVG(points, plot, from, to, lo, hi)
	if err := rasterize(img, svgDoc, r.width, r.height); err != nil {
		return nil, fmt.Errorf("rasterize chart: %w", err)
	}

	r.drawText(img, plot, from, to, lo, hi, label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// collapseDuplicates keeps the last value for each timestamp, preserving
// the ascending order of the rest.
func collapseDuplicates(points []domain.RatingPoint) []domain.RatingPoint {
	if len(points) < 2 {
		return points
	}
	out := make([]domain.RatingPoint, 0, len(points))
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].At.Equal(p.At) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func ratingBounds(points []domain.RatingPoint) (lo, hi int) {
	lo, hi = points[0].Rating, points[0].Rating
	for _, p := range points[1:] {
		if p.Rating < lo {
			lo = p.Rating
		}
		if p.Rating > hi {
			hi = p.Rating
		}
	}
	// pad a flat series so the line does not hug the border
	if hi-lo < 20 {
		lo -= 10
		hi += 10
	}
	return lo, hi
}

func (r *Renderer) plotSVG(points []domain.RatingPoint, plot image.Rectangle, from, to time.Time, lo, hi int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		r.width, r.height, r.width, r.height)

	// plot panel
	fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`,
		plot.Min.X, plot.Min.Y, plot.Dx(), plot.Dy(), plotFill)

	// horizontal grid lines at quarter steps
	for i := 0; i <= 4; i++ {
		y := plot.Min.Y + plot.Dy()*i/4
		fmt.Fprintf(&b, `<path d="M%d %d L%d %d" stroke="%s" stroke-width="1" fill="none"/>`,
			plot.Min.X, y, plot.Max.X, y, gridStroke)
	}
	for i := 0; i <= 4; i++ {
		x := plot.Min.X + plot.Dx()*i/4
		fmt.Fprintf(&b, `<path d="M%d %d L%d %d" stroke="%s" stroke-width="1" fill="none"/>`,
			x, plot.Min.Y, x, plot.Max.Y, gridStroke)
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = xPos(p.At, from, to, plot)
		ys[i] = yPos(p.Rating, lo, hi, plot)
	}

	if len(points) > 1 {
		var d strings.Builder
		fmt.Fprintf(&d, "M%.1f %.1f", xs[0], ys[0])
		for i := 1; i < len(points); i++ {
			fmt.Fprintf(&d, " L%.1f %.1f", xs[i], ys[i])
		}
		fmt.Fprintf(&b, `<path d="%s" stroke="%s" stroke-width="2.5" fill="none"/>`,
			d.String(), lineStroke)
	}
	for i := range points {
		fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="4" height="4" fill="%s"/>`,
			xs[i]-2, ys[i]-2, dotFill)
	}

	b.WriteString(`</svg>`)
	return b.String()
}

// xPos maps a timestamp onto the constant time axis.
func xPos(at, from, to time.Time, plot image.Rectangle) float64 {
	span := to.Sub(from)
	if span <= 0 {
		return float64(plot.Min.X) + float64(plot.Dx())/2
	}
	frac := float64(at.Sub(from)) / float64(span)
	return float64(plot.Min.X) + frac*float64(plot.Dx())
}

func yPos(rating, lo, hi int, plot image.Rectangle) float64 {
	frac := float64(rating-lo) / float64(hi-lo)
	return float64(plot.Max.Y) - frac*float64(plot.Dy())
}

func rasterize(img *image.RGBA, svgDoc string, w, h int) error {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svgDoc))
	if err != nil {
		return fmt.Errorf("parse chart svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	return nil
}

func (r *Renderer) drawText(img *image.RGBA, plot image.Rectangle, from, to time.Time, lo, hi int, label string) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}

	drawer.Src = image.NewUniform(titleColor)
	drawString(drawer, label, plot.Min.X, marginTop/2+4)

	drawer.Src = image.NewUniform(axisTextColor)
	// y ticks mirror the quarter grid lines
	for i := 0; i <= 4; i++ {
		y := plot.Min.Y + plot.Dy()*i/4
		rating := hi - (hi-lo)*i/4
		text := fmt.Sprintf("%d", rating)
		width := drawer.MeasureString(text).Round()
		drawString(drawer, text, plot.Min.X-width-8, y+4)
	}

	mid := from.Add(to.Sub(from) / 2)
	ticks := []struct {
		at    time.Time
		align int // -1 left, 0 center, 1 right
	}{
		{from, -1},
		{mid, 0},
		{to, 1},
	}
	baseline := plot.Max.Y + 20
	for _, tick := range ticks {
		text := tick.at.Format("2006-01-02")
		width := drawer.MeasureString(text).Round()
		x := int(xPos(tick.at, from, to, plot))
		switch tick.align {
		case 0:
			x -= width / 2
		case 1:
			x -= width
		}
		drawString(drawer, text, x, baseline)
	}
}

func drawString(drawer *font.Drawer, text string, x, baseline int) {
	if text == "" {
		return
	}
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}
