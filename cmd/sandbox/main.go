// Sandbox is a terminal testbed for the simulation core.
//
// Keys: arrows/WASD push the player, 1 snapshot, 2 sync to snapshot, 3 quantize,
// 4 reset, C drop a box. Left click drops a ball, right click clears dynamics,
// the wheel zooms. Esc or Ctrl+C quits.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/zeusync/bodysync/internal/config"
	"github.com/zeusync/bodysync/internal/core/engine"
	"github.com/zeusync/bodysync/internal/core/engine/box2d"
	"github.com/zeusync/bodysync/internal/core/input"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/core/template"
)

type harness struct {
	screen  tcell.Screen
	sandbox *Sandbox
	sim     *simulation.Simulation
	zoom    float64
	width   int
	height  int
}

func main() {
	catalog := flag.String("catalog", "configs/catalog.yaml", "kind catalog")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	kinds, err := config.LoadCatalogFile(*catalog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}
	cfg := simulation.DefaultConfig()
	cfg.Kinds = kinds
	sim, err := simulation.New(box2d.NewWorld(engine.Vec2{}), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build simulation: %v\n", err)
		os.Exit(1)
	}
	sandbox, err := NewSandbox(sim, *seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lay out scene: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	screen.EnableMouse()
	defer screen.Fini()

	h := &harness{screen: screen, sandbox: sandbox, sim: sim, zoom: 2}
	h.width, h.height = screen.Size()
	if err := h.run(cfg.TickRate); err != nil {
		screen.Fini()
		fmt.Fprintf(os.Stderr, "Sandbox stopped: %v\n", err)
		os.Exit(1)
	}
}

func (h *harness) run(tickRate float64) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / tickRate))
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := h.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if !h.handle(ev) {
				return nil
			}
		case <-ticker.C:
			if err := h.sandbox.Frame(); err != nil {
				return err
			}
			h.draw()
		}
	}
}

func (h *harness) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if code := keyCode(ev); code != "" {
			h.sandbox.Keyboard().Press(code)
		}
	case *tcell.EventMouse:
		h.mouse(ev)
	case *tcell.EventResize:
		h.width, h.height = h.screen.Size()
		h.screen.Sync()
	}
	return true
}

func (h *harness) mouse(ev *tcell.EventMouse) {
	m := h.sandbox.Mouse()
	x, y := ev.Position()
	wx, wy := h.toWorld(x, y)
	m.Move(wx, wy)

	buttons := ev.Buttons()
	for mask, id := range map[tcell.ButtonMask]int{
		tcell.Button1: input.ButtonLeft,
		tcell.Button2: input.ButtonRight,
		tcell.Button3: input.ButtonMiddle,
	} {
		if buttons&mask != 0 {
			m.Press(id)
		} else {
			m.Release(id)
		}
	}
	switch {
	case buttons&tcell.WheelUp != 0:
		m.Scroll(0, -1, 0)
		h.zoom = math.Min(h.zoom*1.25, 16)
	case buttons&tcell.WheelDown != 0:
		m.Scroll(0, 1, 0)
		h.zoom = math.Max(h.zoom/1.25, 0.25)
	}
}

// keyCode names a terminal key the way the keyboard chords do.
func keyCode(ev *tcell.EventKey) string {
	switch ev.Key() {
	case tcell.KeyUp:
		return "ArrowUp"
	case tcell.KeyDown:
		return "ArrowDown"
	case tcell.KeyLeft:
		return "ArrowLeft"
	case tcell.KeyRight:
		return "ArrowRight"
	case tcell.KeyEnter:
		return "Enter"
	case tcell.KeyRune:
		r := ev.Rune()
		switch {
		case r >= '0' && r <= '9':
			return "Digit" + string(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return "Key" + strings.ToUpper(string(r))
		case r == ' ':
			return "Space"
		}
	}
	return ""
}

// Terminal cells are about twice as tall as wide.
func (h *harness) toScreen(x, y float64) (int, int) {
	return h.width/2 + int(math.Round(x*h.zoom)), h.height/2 - int(math.Round(y*h.zoom/2))
}

func (h *harness) toWorld(sx, sy int) (float64, float64) {
	return float64(sx-h.width/2) / h.zoom, float64(h.height/2-sy) * 2 / h.zoom
}

func (h *harness) draw() {
	h.screen.Clear()
	for _, id := range h.sim.Of(registry.Instances) {
		t, ok := h.sim.TemplateOf(id)
		if !ok {
			continue
		}
		g, _ := h.sim.StateOf(id)
		kind, _ := h.sim.KindOf(id)
		for name, st := range t.Structures {
			x, y := st.X, st.Y
			if rec, ok := g[name]; ok {
				if v, ok := rec[template.FieldX]; ok {
					x = v
				}
				if v, ok := rec[template.FieldY]; ok {
					y = v
				}
			}
			for _, part := range st.Parts {
				h.drawForm(engine.V(x, y), part.Form, glyph(kind))
			}
		}
	}

	style := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	line := fmt.Sprintf("tick %d  instances %d  zoom %.2f  %s", h.sim.Ticks(), h.sim.Len(), h.zoom, h.sandbox.Status())
	h.text(0, 0, line, style)
	h.text(0, h.height-1, "arrows/WASD move  1 snapshot  2 sync  3 quantize  4 reset  C box  click ball  Esc quit", tcell.StyleDefault)
	h.screen.Show()
}

func (h *harness) drawForm(pos engine.Vec2, f template.Form, r rune) {
	style := tcell.StyleDefault
	switch f.Type {
	case template.Edge:
		h.line(pos.Add(engine.V(f.X, f.Y)), pos.Add(engine.V(f.X2, f.Y2)), style.Foreground(tcell.ColorGray))
	case template.Box:
		x0, y0 := h.toScreen(pos.X+f.X-f.W/2, pos.Y+f.Y+f.H/2)
		x1, y1 := h.toScreen(pos.X+f.X+f.W/2, pos.Y+f.Y-f.H/2)
		for sx := x0; sx <= x1; sx++ {
			for sy := y0; sy <= y1; sy++ {
				h.screen.SetContent(sx, sy, r, nil, style.Foreground(tcell.ColorBlue))
			}
		}
	default:
		sx, sy := h.toScreen(pos.X+f.X, pos.Y+f.Y)
		h.screen.SetContent(sx, sy, r, nil, style.Foreground(tcell.ColorGreen))
	}
}

func (h *harness) line(a, b engine.Vec2, style tcell.Style) {
	x0, y0 := h.toScreen(a.X, a.Y)
	x1, y1 := h.toScreen(b.X, b.Y)
	steps := max(abs(x1-x0), abs(y1-y0), 1)
	for i := 0; i <= steps; i++ {
		x := x0 + (x1-x0)*i/steps
		y := y0 + (y1-y0)*i/steps
		h.screen.SetContent(x, y, '-', nil, style)
	}
}

func (h *harness) text(x, y int, s string, style tcell.Style) {
	for i, r := range s {
		h.screen.SetContent(x+i, y, r, nil, style)
	}
}

func glyph(kind string) rune {
	switch kind {
	case "player":
		return '@'
	case "box":
		return '#'
	case "ball":
		return 'o'
	default:
		return '*'
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
