package input

import "sync"

// Keyboard tracks keys by code name ("KeyW", "ArrowUp", "Digit1", ...). Press and
// Release may be called from an event goroutine while the frame loop queries.
type Keyboard struct {
	mu   sync.Mutex
	live buttons
	curr buttons
	prev buttons
}

func NewKeyboard() *Keyboard {
	return &Keyboard{live: buttons{}, curr: buttons{}, prev: buttons{}}
}

func (k *Keyboard) Press(code string) {
	k.mu.Lock()
	k.live[code] = true
	k.mu.Unlock()
}

func (k *Keyboard) Release(code string) {
	k.mu.Lock()
	delete(k.live, code)
	k.mu.Unlock()
}

// ReleaseAll clears every live key. Terminals report no key-up events, so harnesses
// call it after each AdvanceFrame to treat a key event as a one-frame tap.
func (k *Keyboard) ReleaseAll() {
	k.mu.Lock()
	k.live = buttons{}
	k.mu.Unlock()
}

// AdvanceFrame moves the current frame to previous and snapshots the live keys.
func (k *Keyboard) AdvanceFrame() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.prev = k.curr
	k.curr = k.live.clone()
}

func (k *Keyboard) IsDown(chord string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.curr.down(chord)
}

func (k *Keyboard) IsDownPrev(chord string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.prev.down(chord)
}

// IsPressed is true on the first frame chord is down.
func (k *Keyboard) IsPressed(chord string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.curr.down(chord) && !k.prev.down(chord)
}

// IsReleased is true on the first frame chord is no longer down.
func (k *Keyboard) IsReleased(chord string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return !k.curr.down(chord) && k.prev.down(chord)
}
