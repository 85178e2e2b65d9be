package widgets

import (
	"image"
	"image/color"
	"math"

	platetimer "github.com/d093w1z/platetimer/api"

	"github.com/d093w1z/gio/f32"
	"github.com/d093w1z/gio/layout"
	"github.com/d093w1z/gio/op/clip"
	"github.com/d093w1z/gio/op/paint"
	"github.com/d093w1z/gio/text"
	"github.com/d093w1z/gio/unit"
	"github.com/d093w1z/gio/widget"
	"github.com/d093w1z/gio/widget/material"
	"golang.org/x/exp/shiny/materialdesign/icons"
)

var (
	ringTrack = color.NRGBA{R: 0x1B, G: 0x2A, B: 0x24, A: 0xFF}
	ringStart = color.NRGBA{R: 0x1F, G: 0x8F, B: 0x5A, A: 0xFF}
	ringEnd   = color.NRGBA{R: 0x7C, G: 0xFF, B: 0xB2, A: 0xFF}
	ringHole  = color.NRGBA{R: 0x0B, G: 0x0F, B: 0x12, A: 0xFF}
)

const (
	ringSize      = unit.Dp(200)
	ringThickness = unit.Dp(10)
	ringSegments  = 120
)

func lerpColor(c1, c2 color.NRGBA, t float32) color.NRGBA {
	mix := func(a, b uint8) uint8 { return uint8(float32(a) + t*(float32(b)-float32(a))) }
	return color.NRGBA{R: mix(c1.R, c2.R), G: mix(c1.G, c2.G), B: mix(c1.B, c2.B), A: mix(c1.A, c2.A)}
}

// polar returns the point at radius r and angle a (radians, 0 at the top,
// clockwise) around c.
func polar(c f32.Point, r float32, a float64) f32.Point {
	return f32.Pt(c.X+r*float32(math.Sin(a)), c.Y-r*float32(math.Cos(a)))
}

// ProgressRing fills a ring clockwise from the top for progress in [0, 1].
func ProgressRing(gtx layout.Context, progress float32) layout.Dimensions {
	size := gtx.Dp(ringSize)
	dims := layout.Dimensions{Size: image.Pt(size, size)}

	filled := int(float32(ringSegments) * progress)
	if filled <= 0 {
		return dims
	}
	if filled > ringSegments {
		filled = ringSegments
	}

	center := f32.Pt(float32(size)/2, float32(size)/2)
	outer := float32(size) / 2
	inner := outer - float32(gtx.Dp(ringThickness))
	step := 2 * math.Pi / ringSegments

	for i := 0; i < filled; i++ {
		a0, a1 := float64(i)*step, float64(i+1)*step

		var p clip.Path
		p.Begin(gtx.Ops)
		p.MoveTo(polar(center, outer, a0))
		p.LineTo(polar(center, outer, a1))
		p.LineTo(polar(center, inner, a1))
		p.LineTo(polar(center, inner, a0))
		p.Close()

		t := float32(0)
		if filled > 1 {
			t = float32(i) / float32(filled-1)
		}
		paint.FillShape(gtx.Ops, lerpColor(ringStart, ringEnd, t), clip.Outline{Path: p.End()}.Op())
	}
	return dims
}

// Timer draws the progress ring with the remaining time and phase in its centre.
func Timer(th *material.Theme, s platetimer.Snapshot) layout.FlexChild {
	return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
		return layout.Stack{Alignment: layout.Center}.Layout(gtx,
			layout.Stacked(func(gtx layout.Context) layout.Dimensions {
				size := gtx.Dp(ringSize)
				rect := image.Rect(0, 0, size, size)
				paint.FillShape(gtx.Ops, ringTrack, clip.Ellipse{Min: rect.Min, Max: rect.Max}.Op(gtx.Ops))

				ProgressRing(gtx, float32(s.Percent/100))

				hole := rect.Inset(gtx.Dp(ringThickness))
				paint.FillShape(gtx.Ops, ringHole, clip.Ellipse{Min: hole.Min, Max: hole.Max}.Op(gtx.Ops))
				return layout.Dimensions{Size: rect.Size()}
			}),
			layout.Stacked(func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical, Alignment: layout.Middle}.Layout(gtx,
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						icon, _ := widget.NewIcon(icons.ImageTimer)
						return icon.Layout(gtx, th.Palette.Fg)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						l := material.H4(th, s.Clock)
						l.Alignment = text.Middle
						return l.Layout(gtx)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						l := material.Caption(th, s.Phase.String())
						l.Alignment = text.Middle
						return l.Layout(gtx)
					}),
				)
			}),
		)
	})
}
