// Package input holds per-frame keyboard and mouse state for harnesses that drive a
// simulation from user input. Live events mutate a pending state; AdvanceFrame
// snapshots it, so edge queries (pressed, released) compare two stable frames.
package input

import "strings"

// Chord is a parsed chord description: any group matches when all of its names are
// down.
type Chord [][]string

// ParseChord splits desc on '|' into groups and each group on '+' into names. Blank
// names are dropped, and so are groups left empty.
func ParseChord(desc string) Chord {
	var c Chord
	for _, group := range strings.Split(desc, "|") {
		var names []string
		for _, name := range strings.Split(group, "+") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			c = append(c, names)
		}
	}
	return c
}

// Match reports whether any group has every name down. An empty chord never matches.
func (c Chord) Match(isDown func(name string) bool) bool {
	for _, group := range c {
		all := true
		for _, name := range group {
			if !isDown(name) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (c Chord) String() string {
	groups := make([]string, len(c))
	for i, g := range c {
		groups[i] = strings.Join(g, "+")
	}
	return strings.Join(groups, "|")
}

type buttons map[string]bool

func (b buttons) clone() buttons {
	out := make(buttons, len(b))
	for k, v := range b {
		if v {
			out[k] = true
		}
	}
	return out
}

func (b buttons) down(desc string) bool {
	return ParseChord(desc).Match(func(name string) bool { return b[name] })
}
