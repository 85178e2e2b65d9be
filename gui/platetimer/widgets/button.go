package widgets

import (
	"image/color"

	"github.com/d093w1z/gio/layout"
	"github.com/d093w1z/gio/unit"
	"github.com/d093w1z/gio/widget"
	"github.com/d093w1z/gio/widget/material"
)

var buttonBackground = color.NRGBA{R: 0x1B, G: 0x2A, B: 0x24, A: 0xFF}

// Button is an icon button laid out as a rigid flex child. onClick runs
// during layout when the button was clicked since the previous frame.
func Button(th *material.Theme, inset unit.Dp, label string, icon []byte, btnWidget *widget.Clickable, onClick func()) layout.FlexChild {
	return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
		if btnWidget.Clicked(gtx) {
			onClick()
		}

		ic, _ := widget.NewIcon(icon)
		btn := material.IconButton(th, btnWidget, ic, label)
		btn.Background = buttonBackground
		btn.Color = th.Palette.Fg
		btn.Inset = layout.UniformInset(inset)
		return btn.Layout(gtx)
	})
}
