package main

import (
	"errors"
	"flag"
	"image/color"
	"os"
	"strconv"
	"strings"
	"sync"

	platetimer "github.com/d093w1z/platetimer/api"
	"github.com/d093w1z/platetimer/gui/platetimer/polybar"
	widgets "github.com/d093w1z/platetimer/gui/platetimer/widgets"
	"github.com/d093w1z/platetimer/internal/config"
	"github.com/d093w1z/platetimer/internal/logger"
	"github.com/d093w1z/platetimer/plating"

	"github.com/d093w1z/gio/app"
	"github.com/d093w1z/gio/io/event"
	"github.com/d093w1z/gio/io/key"
	"github.com/d093w1z/gio/io/system"
	"github.com/d093w1z/gio/layout"
	"github.com/d093w1z/gio/op"
	"github.com/d093w1z/gio/op/clip"
	"github.com/d093w1z/gio/op/paint"
	"github.com/d093w1z/gio/unit"
	"github.com/d093w1z/gio/widget"
	"github.com/d093w1z/gio/widget/material"
	"golang.org/x/exp/shiny/materialdesign/icons"
)

type C = layout.Context
type D = layout.Dimensions

var (
	isPolybarEnabled = flag.Bool("polybar", false, "Enable polybar output")
	armSeconds       = flag.Int("duration", 0, "Arm the countdown with this many seconds at startup")
)

var (
	background = color.NRGBA{R: 0x0B, G: 0x0F, B: 0x12, A: 0xFF}
	foreground = color.NRGBA{R: 0x7C, G: 0xFF, B: 0xB2, A: 0xFF}
	panel      = color.NRGBA{R: 0x04, G: 0x10, B: 0x14, A: 0xFF}
	textColor  = color.NRGBA{R: 0xDF, G: 0xFF, B: 0xE0, A: 0xFF}
)

// calculator holds the input form widgets.
type calculator struct {
	area     widget.Editor
	current  widget.Editor
	mode     widget.Enum
	material widget.Enum
	btnCalc  widget.Clickable
}

func newCalculator() *calculator {
	c := &calculator{
		area:    widget.Editor{SingleLine: true, Submit: true},
		current: widget.Editor{SingleLine: true, Submit: true},
	}
	c.mode.Value = string(plating.Fast)
	c.material.Value = "copper"
	return c
}

func parseNumber(label, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0, errors.New(label + " is not a number")
	}
	return v, nil
}

func (c *calculator) input() (plating.Input, error) {
	area, err := parseNumber("surface", c.area.Text())
	if err != nil {
		return plating.Input{}, err
	}
	current, err := parseNumber("current", c.current.Text())
	if err != nil {
		return plating.Input{}, err
	}
	mode, err := plating.ParseMode(c.mode.Value)
	if err != nil {
		return plating.Input{}, err
	}
	return plating.Input{Area: area, Mode: mode, Material: c.material.Value, Current: current}, nil
}

type AppManager struct {
	engine  *platetimer.Engine
	calc    *calculator
	polybar bool // the window is opened on demand and closing it keeps the process alive

	btnStart widget.Clickable
	btnPause widget.Clickable
	btnReset widget.Clickable

	window *app.Window
	mu     sync.Mutex
	result string
	notice string
}

func NewAppManager(engine *platetimer.Engine) *AppManager {
	m := &AppManager{engine: engine, calc: newCalculator()}
	go m.refresh(engine.Subscribe())
	return m
}

// refresh redraws the window for every snapshot.
func (m *AppManager) refresh(updates <-chan platetimer.Snapshot) {
	for range updates {
		m.invalidate()
	}
}

func (m *AppManager) invalidate() {
	m.mu.Lock()
	w := m.window
	m.mu.Unlock()
	if w != nil {
		w.Invalidate()
	}
}

func (m *AppManager) setNotice(s string) {
	m.mu.Lock()
	m.notice = s
	m.mu.Unlock()
	m.invalidate()
}

// onComplete is the engine's completion callback.
func (m *AppManager) onComplete() {
	m.setNotice("Plating finished!")
}

// Start creates the window and launches the event loop
func (m *AppManager) Start() {
	m.mu.Lock()
	if m.window != nil {
		m.mu.Unlock()
		return
	}

	m.window = new(app.Window)
	m.window.Option(app.Size(900, 640), app.Title("Plating Timer"))
	w := m.window
	m.mu.Unlock()

	go func() {
		if err := m.loop(w); err != nil {
			logger.Errorf("window loop: %v", err)
			shutdown(m.engine, 1)
		}
		if !m.polybar {
			shutdown(m.engine, 0)
		}
	}()
}

// Stop closes the window safely
func (m *AppManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.window != nil {
		m.window.Perform(system.ActionClose)
		m.window = nil
	}
}

// ToggleState opens or closes the window
func (m *AppManager) ToggleState() {
	m.mu.Lock()
	windowRunning := m.window != nil
	m.mu.Unlock()

	if !windowRunning {
		go m.Start()
	} else {
		go m.Stop()
	}
}

// ---------------- ACTIONS ----------------

func (m *AppManager) calculate() {
	in, err := m.calc.input()
	if err != nil {
		m.setNotice("Check the values entered: " + err.Error())
		return
	}
	rec, err := plating.Calculate(in)
	if err != nil {
		m.setNotice("Check the values entered: " + err.Error())
		return
	}
	if err := m.engine.Arm(rec.Seconds); err != nil {
		if errors.Is(err, platetimer.ErrInvalidState) {
			m.setNotice("Pause or reset the timer before recalculating.")
		} else {
			m.setNotice(err.Error())
		}
		return
	}

	m.mu.Lock()
	m.result = rec.Summary()
	m.mu.Unlock()
	m.setNotice("")
	logger.Infof("armed %s for %.1f cm² %s/%s at %.2f A", platetimer.FormatClock(rec.Seconds), in.Area, in.Material, in.Mode, in.Current)
}

func (m *AppManager) start() {
	err := m.engine.Start()
	switch {
	case errors.Is(err, platetimer.ErrEmptyDuration):
		m.setNotice("Empty timer: calculate the time before starting.")
	case err != nil:
		m.setNotice(err.Error())
	default:
		m.setNotice("")
	}
}

// ---------------- GUI LOOP ----------------
func (m *AppManager) loop(window *app.Window) error {
	var ops op.Ops
	th := material.NewTheme()
	th.Palette.Bg = background
	th.Palette.Fg = foreground
	th.Palette.ContrastBg = foreground
	th.Palette.ContrastFg = background

	for {
		switch e := window.Event().(type) {
		case app.DestroyEvent:
			m.mu.Lock()
			if m.window == window {
				m.window = nil
			}
			m.mu.Unlock()
			return e.Err

		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)

			event.Op(gtx.Ops, window)
			key.InputHintOp{Tag: window, Hint: key.HintAny}.Add(gtx.Ops)
			for {
				ev, ok := gtx.Source.Event(key.Filter{Focus: nil})
				if !ok {
					break
				}
				if keyEv, ok := ev.(key.Event); ok && keyEv.Name == key.NameEscape && keyEv.State == key.Press {
					m.Stop()
				}
			}

			paint.FillShape(gtx.Ops, background, clip.Rect{Max: gtx.Constraints.Max}.Op())

			layout.UniformInset(unit.Dp(20)).Layout(gtx, func(gtx C) D {
				return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
					layout.Flexed(0.6, func(gtx C) D { return m.calculatorPanel(th, gtx) }),
					layout.Rigid(layout.Spacer{Width: unit.Dp(30)}.Layout),
					layout.Flexed(0.4, func(gtx C) D { return m.timerPanel(th, gtx) }),
				)
			})

			e.Frame(gtx.Ops)
		}
	}
}

// ---------------- CALCULATOR PANEL ----------------
func labeled(th *material.Theme, label string, w layout.Widget) layout.FlexChild {
	return layout.Rigid(func(gtx C) D {
		return layout.Inset{Bottom: unit.Dp(12)}.Layout(gtx, func(gtx C) D {
			return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
				layout.Rigid(func(gtx C) D {
					gtx.Constraints.Min.X = gtx.Dp(unit.Dp(150))
					return material.Body1(th, label).Layout(gtx)
				}),
				layout.Flexed(1, w),
			)
		})
	})
}

func (m *AppManager) calculatorPanel(th *material.Theme, gtx C) D {
	c := m.calc
	if c.btnCalc.Clicked(gtx) {
		m.calculate()
	}
	for _, ed := range []*widget.Editor{&c.area, &c.current} {
		for {
			ev, ok := ed.Update(gtx)
			if !ok {
				break
			}
			if _, ok := ev.(widget.SubmitEvent); ok {
				m.calculate()
			}
		}
	}

	m.mu.Lock()
	result := m.result
	m.mu.Unlock()

	editor := func(ed *widget.Editor, hint string) layout.Widget {
		return func(gtx C) D {
			style := material.Editor(th, ed, hint)
			style.Color = textColor
			return style.Layout(gtx)
		}
	}

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		labeled(th, "Surface (cm²):", editor(&c.area, "e.g. 120")),
		labeled(th, "Finish:", func(gtx C) D {
			return layout.Flex{}.Layout(gtx,
				layout.Rigid(material.RadioButton(th, &c.mode, string(plating.Fast), "fast").Layout),
				layout.Rigid(material.RadioButton(th, &c.mode, string(plating.Fine), "fine").Layout),
			)
		}),
		labeled(th, "Material:", func(gtx C) D {
			children := make([]layout.FlexChild, 0, len(plating.Materials()))
			for _, name := range plating.Materials() {
				children = append(children, layout.Rigid(material.RadioButton(th, &c.material, name, name).Layout))
			}
			return layout.Flex{}.Layout(gtx, children...)
		}),
		labeled(th, "Available current (A):", editor(&c.current, "e.g. 5")),
		layout.Rigid(func(gtx C) D {
			return material.Button(th, &c.btnCalc, "Calculate").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(20)}.Layout),
		layout.Flexed(1, func(gtx C) D {
			paint.FillShape(gtx.Ops, panel, clip.Rect{Max: gtx.Constraints.Max}.Op())
			return layout.UniformInset(unit.Dp(10)).Layout(gtx, func(gtx C) D {
				l := material.Body1(th, result)
				l.Color = textColor
				return l.Layout(gtx)
			})
		}),
	)
}

// ---------------- TIMER PANEL ----------------
func (m *AppManager) timerPanel(th *material.Theme, gtx C) D {
	snap := m.engine.Snapshot()

	m.mu.Lock()
	notice := m.notice
	m.mu.Unlock()

	return layout.Flex{Axis: layout.Vertical, Alignment: layout.Middle}.Layout(gtx,
		layout.Rigid(material.H6(th, "Timer").Layout),
		layout.Rigid(layout.Spacer{Height: unit.Dp(20)}.Layout),
		widgets.Timer(th, snap),
		layout.Rigid(layout.Spacer{Height: unit.Dp(20)}.Layout),
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Max.X = gtx.Dp(unit.Dp(250))
			return material.ProgressBar(th, float32(snap.Percent/100)).Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			return layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx C) D {
				return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
					widgets.Button(th, 10, "START", icons.AVPlayArrow, &m.btnStart, m.start),
					layout.Rigid(layout.Spacer{Width: unit.Dp(10)}.Layout),
					widgets.Button(th, 10, "PAUSE", icons.AVPause, &m.btnPause, m.engine.Pause),
					layout.Rigid(layout.Spacer{Width: unit.Dp(10)}.Layout),
					widgets.Button(th, 10, "RESET", icons.AVReplay, &m.btnReset, m.engine.Reset),
				)
			})
		}),
		layout.Rigid(func(gtx C) D {
			l := material.Body1(th, notice)
			l.Color = textColor
			return l.Layout(gtx)
		}),
	)
}

// ---------------- MAIN ----------------
func shutdown(engine *platetimer.Engine, code int) {
	engine.Close()
	if err := logger.Close(); err != nil {
		logger.Errorf("closing log file: %v", err)
	}
	os.Exit(code)
}

func main() {
	flag.Parse()
	cfg := config.Load()

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogDir != "" {
		if err := logger.Init(cfg.LogDir); err != nil {
			logger.Warnf("file logging disabled: %v", err)
		}
	}

	var manager *AppManager
	engine := platetimer.New(
		platetimer.WithInterval(cfg.TickInterval),
		platetimer.WithCompletionHandler(func() {
			logger.Infof("plating finished")
			if manager != nil {
				manager.onComplete()
			}
		}),
	)
	manager = NewAppManager(engine)
	manager.polybar = *isPolybarEnabled || cfg.Polybar

	if *armSeconds > 0 {
		if err := engine.Arm(*armSeconds); err != nil {
			logger.Errorf("arm %d: %v", *armSeconds, err)
		}
	}

	if manager.polybar {
		bridge := polybar.New(engine, os.Stdout)
		if _, err := bridge.Init(cfg.PipeBase); err != nil {
			logger.Errorf("polybar: %v", err)
			shutdown(engine, 1)
		}
		bridge.AddHandler(manager.ToggleState)
		go func() {
			if err := bridge.Run(); err != nil {
				logger.Errorf("polybar: %v", err)
			}
			shutdown(engine, 0)
		}()
	} else {
		manager.Start()
	}

	app.Main()
}
