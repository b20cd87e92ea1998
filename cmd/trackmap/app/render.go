package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 120.0
	fontSize       = 10.0
	tickMarkHeight = 5
	pixelsPerLabel = 120.0
	markerSize     = 6

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 60
	defaultRightBorder  = 40

	defaultDatetimeFormat = time.DateTime
)

// BorderConfig defines the sizes of white space around the plot
type BorderConfig struct {
	Top    int // Space for X scale
	Left   int // Space for Y scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for track visualization
type RenderConfig struct {
	Size           int            // Side of the square plot area in pixels
	DatetimeFormat string         // Format string for date/time display
	Location       *time.Location // Timezone for time display
	FontSize       float64        // Font size in points
	NoAnnotations  bool

	BorderConfig BorderConfig
}

// TrackRenderer draws a top-down view of a flight track
type TrackRenderer struct {
	config RenderConfig
}

// NewTrackRenderer creates a new track renderer with the given configuration
func NewTrackRenderer(config RenderConfig) *TrackRenderer {
	if config.Size == 0 {
		config.Size = defaultSize
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.NoAnnotations {
		config.BorderConfig = BorderConfig{}
	} else {
		if config.BorderConfig.Top == 0 {
			config.BorderConfig.Top = defaultTopBorder
		}
		if config.BorderConfig.Left == 0 {
			config.BorderConfig.Left = defaultLeftBorder
		}
		if config.BorderConfig.Bottom == 0 {
			config.BorderConfig.Bottom = defaultBottomBorder
		}
		if config.BorderConfig.Right == 0 {
			config.BorderConfig.Right = defaultRightBorder
		}
	}

	return &TrackRenderer{config: config}
}

// Render creates an image of the track with annotations
func (r *TrackRenderer) Render(data *TrackData) (*image.RGBA, error) {
	borders := r.config.BorderConfig
	fullWidth := r.config.Size + borders.Left + borders.Right
	fullHeight := r.config.Size + borders.Top + borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(borders.Left, borders.Top, borders.Left+r.config.Size, borders.Top+r.config.Size)
	proj := newProjection(area, data)

	drawRect(img, area, frameColor)

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(annotatorConfig{
			DatetimeFormat: r.config.DatetimeFormat,
			Location:       r.config.Location,
			FontSize:       r.config.FontSize,
			Borders:        borders,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, proj, data); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderTrack(img, proj, data)
	return img, nil
}

// renderTrack draws the path, start and end of the track and the target
func (r *TrackRenderer) renderTrack(img *image.RGBA, proj projection, data *TrackData) {
	var prev image.Point
	for i, p := range data.Points {
		pt := proj.point(p.X, p.Y)
		c := altitudeColor(p.Z, data.MinZ, data.MaxZ)

		if i > 0 {
			drawLine(img, prev, pt, c)
		}
		fillRect(img, image.Rect(pt.X-1, pt.Y-1, pt.X+2, pt.Y+2), c)
		prev = pt
	}

	if len(data.Points) > 0 {
		first := data.Points[0]
		last := data.Points[len(data.Points)-1]

		start := proj.point(first.X, first.Y)
		fillRect(img, markerRect(start), startColor)

		end := proj.point(last.X, last.Y)
		drawRect(img, markerRect(end), endColor)
	}

	target := proj.point(data.Session.Target.X, data.Session.Target.Y)
	drawLine(img, target.Add(image.Pt(-markerSize, -markerSize)), target.Add(image.Pt(markerSize, markerSize)), targetColor)
	drawLine(img, target.Add(image.Pt(-markerSize, markerSize)), target.Add(image.Pt(markerSize, -markerSize)), targetColor)
}

// projection maps horizontal track coordinates in meters onto the plot area,
// north up, keeping the aspect ratio
type projection struct {
	area       image.Rectangle
	minX, minY float64 // world coordinates of the bottom left corner
	scale      float64 // pixels per meter
}

func newProjection(area image.Rectangle, data *TrackData) projection {
	w := data.MaxX - data.MinX
	h := data.MaxY - data.MinY
	scale := math.Min(float64(area.Dx())/w, float64(area.Dy())/h)

	return projection{
		area:  area,
		minX:  data.MinX - (float64(area.Dx())/scale-w)/2,
		minY:  data.MinY - (float64(area.Dy())/scale-h)/2,
		scale: scale,
	}
}

func (p projection) point(x, y float64) image.Point {
	return image.Pt(
		p.area.Min.X+int(math.Round((x-p.minX)*p.scale)),
		p.area.Max.Y-int(math.Round((y-p.minY)*p.scale)),
	)
}

func (p projection) maxX() float64 {
	return p.minX + float64(p.area.Dx())/p.scale
}

func (p projection) maxY() float64 {
	return p.minY + float64(p.area.Dy())/p.scale
}

// Internal annotator implementation
type annotatorConfig struct {
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, proj projection, data *TrackData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawXScale(img, proj); err != nil {
		return fmt.Errorf("drawing X scale: %w", err)
	}
	if err := a.drawYScale(img, proj); err != nil {
		return fmt.Errorf("drawing Y scale: %w", err)
	}
	if err := a.drawInfoBar(img, proj, data); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) drawXScale(img *image.RGBA, proj projection) error {
	step := calculateNiceStep(proj.maxX()-proj.minX, proj.area.Dx())

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := a.config.Borders.Top - fontHeight/2

	for v := math.Ceil(proj.minX/step) * step; v <= proj.maxX(); v += step {
		x := proj.point(v, 0).X

		for y := a.config.Borders.Top - tickMarkHeight; y < a.config.Borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatMeters(v)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing X label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawYScale(img *image.RGBA, proj projection) error {
	step := calculateNiceStep(proj.maxY()-proj.minY, proj.area.Dy())

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for v := math.Ceil(proj.minY/step) * step; v <= proj.maxY(); v += step {
		y := proj.point(0, v).Y

		for x := a.config.Borders.Left - tickMarkHeight; x < a.config.Borders.Left; x++ {
			img.Set(x, y, color.Black)
		}

		textY := y + fontHeight/2 - metrics.Descent.Round()
		label := formatMeters(v)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(a.config.Borders.Left-tickMarkHeight-3-width.Round(), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing Y label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, proj projection, data *TrackData) error {
	var first, second strings.Builder

	session := data.Session
	first.WriteString(fmt.Sprintf("Session %d (%s); ", session.ID, session.LinkType))
	if !data.Start.IsZero() {
		first.WriteString(fmt.Sprintf("Time: %s - %s (%s)",
			data.Start.In(a.config.Location).Format(a.config.DatetimeFormat),
			data.End.In(a.config.Location).Format(a.config.DatetimeFormat),
			strings.TrimSpace(humanize.RelTime(data.Start, data.End, "", ""))))
	} else {
		first.WriteString("Time: " + session.StartTime.In(a.config.Location).Format(a.config.DatetimeFormat))
	}

	altitude, yaw := data.Commands()
	second.WriteString(fmt.Sprintf("%s snapshots; %s commands (%d altitude, %d yaw); ",
		humanize.Comma(int64(len(data.Points))),
		humanize.Comma(int64(len(data.Reports))),
		altitude, yaw))
	if data.HasAltitude {
		second.WriteString(fmt.Sprintf("Altitude: %s - %s; ", formatMeters(data.MinZ), formatMeters(data.MaxZ)))
	}
	second.WriteString(fmt.Sprintf("Target: %s; 1px = %s", session.Target, formatMeters(1/proj.scale)))

	metrics := a.fontFace.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Round() + 4

	textY := img.Bounds().Max.Y - a.config.Borders.Bottom + lineHeight
	for _, line := range []string{first.String(), second.String()} {
		if _, err := a.context.DrawString(line, freetype.Pt(a.config.Borders.Left, textY)); err != nil {
			return fmt.Errorf("drawing info text: %w", err)
		}
		textY += lineHeight
	}

	return nil
}

// Helper functions

// calculateNiceStep returns a 1, 2 or 5 times power of ten step giving
// roughly one label per pixelsPerLabel pixels
func calculateNiceStep(span float64, pixels int) float64 {
	desiredSteps := max(float64(pixels)/pixelsPerLabel, 1)
	rough := span / desiredSteps

	magnitude := math.Pow(10, math.Floor(math.Log10(rough)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= rough {
			return step
		}
	}
	return 10 * magnitude
}

func formatMeters(v float64) string {
	if v == 0 {
		return "0 m"
	}
	if math.Abs(v) >= 1000 {
		return fmt.Sprintf("%.2f km", v/1000)
	}
	if math.Abs(v) < 1 {
		return fmt.Sprintf("%.2f m", v)
	}
	return fmt.Sprintf("%.1f m", v)
}

func markerRect(p image.Point) image.Rectangle {
	return image.Rect(p.X-markerSize/2, p.Y-markerSize/2, p.X+markerSize/2+1, p.Y+markerSize/2+1)
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// drawLine draws a line from a to b inclusive (Bresenham)
func drawLine(img *image.RGBA, a, b image.Point, c color.Color) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	e := dx + dy
	for {
		img.Set(a.X, a.Y, c)
		if a == b {
			return
		}

		e2 := 2 * e
		if e2 >= dy {
			e += dy
			a.X += sx
		}
		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
