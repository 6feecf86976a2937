package input

import (
	"strconv"
	"sync"
)

const (
	ButtonLeft = iota
	ButtonMiddle
	ButtonRight
	ButtonBack
	ButtonForward
)

// ButtonName maps a button id to the name chords use. Unknown ids keep their number.
func ButtonName(id int) string {
	switch id {
	case ButtonLeft:
		return "Left"
	case ButtonMiddle:
		return "Middle"
	case ButtonRight:
		return "Right"
	case ButtonBack:
		return "Back"
	case ButtonForward:
		return "Forward"
	default:
		return strconv.Itoa(id)
	}
}

// Wheel holds the sign of the last scroll on each axis.
type Wheel struct {
	DX, DY, DZ int
}

type mouseFrame struct {
	x, y    float64
	buttons buttons
	wheel   Wheel
}

func (f mouseFrame) clone() mouseFrame {
	f.buttons = f.buttons.clone()
	return f
}

// Mouse tracks pointer position, buttons and wheel. The wheel keeps the last scroll
// direction until the next scroll.
type Mouse struct {
	mu   sync.Mutex
	live mouseFrame
	curr mouseFrame
	prev mouseFrame
}

func NewMouse() *Mouse {
	return &Mouse{
		live: mouseFrame{buttons: buttons{}},
		curr: mouseFrame{buttons: buttons{}},
		prev: mouseFrame{buttons: buttons{}},
	}
}

func (m *Mouse) Move(x, y float64) {
	m.mu.Lock()
	m.live.x, m.live.y = x, y
	m.mu.Unlock()
}

func (m *Mouse) Press(button int) {
	m.mu.Lock()
	m.live.buttons[ButtonName(button)] = true
	m.mu.Unlock()
}

func (m *Mouse) Release(button int) {
	m.mu.Lock()
	delete(m.live.buttons, ButtonName(button))
	m.mu.Unlock()
}

// Scroll records only the sign of each delta.
func (m *Mouse) Scroll(dx, dy, dz float64) {
	m.mu.Lock()
	m.live.wheel = Wheel{DX: sign(dx), DY: sign(dy), DZ: sign(dz)}
	m.mu.Unlock()
}

func (m *Mouse) AdvanceFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prev = m.curr
	m.curr = m.live.clone()
}

func (m *Mouse) X() float64 { return m.frame(false).x }
func (m *Mouse) Y() float64 { return m.frame(false).y }

func (m *Mouse) PX() float64 { return m.frame(true).x }
func (m *Mouse) PY() float64 { return m.frame(true).y }

func (m *Mouse) DX() float64 { return m.X() - m.PX() }
func (m *Mouse) DY() float64 { return m.Y() - m.PY() }

func (m *Mouse) WX() int { return m.frame(false).wheel.DX }
func (m *Mouse) WY() int { return m.frame(false).wheel.DY }
func (m *Mouse) WZ() int { return m.frame(false).wheel.DZ }

func (m *Mouse) PWX() int { return m.frame(true).wheel.DX }
func (m *Mouse) PWY() int { return m.frame(true).wheel.DY }
func (m *Mouse) PWZ() int { return m.frame(true).wheel.DZ }

func (m *Mouse) IsStill() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curr.x == m.prev.x && m.curr.y == m.prev.y
}

func (m *Mouse) IsMoving() bool {
	return !m.IsStill()
}

// IsDown matches chord against button names, e.g. "Left+Right".
func (m *Mouse) IsDown(chord string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curr.buttons.down(chord)
}

func (m *Mouse) IsDownPrev(chord string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prev.buttons.down(chord)
}

func (m *Mouse) IsPressed(chord string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curr.buttons.down(chord) && !m.prev.buttons.down(chord)
}

func (m *Mouse) IsReleased(chord string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.curr.buttons.down(chord) && m.prev.buttons.down(chord)
}

func (m *Mouse) frame(prev bool) mouseFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev {
		return m.prev
	}
	return m.curr
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
