// Package namespace maintains named, predicate-defined sets of live ids. Membership is
// updated incrementally on admit and evict; queries never rescan.
package namespace

import "sort"

// Predicate decides membership from an id's info.
type Predicate[I any] func(info I) bool

// Set is an unordered set of ids.
type Set[K comparable] map[K]struct{}

func (s Set[K]) Has(id K) bool {
	_, ok := s[id]
	return ok
}

func (s Set[K]) Add(id K) {
	s[id] = struct{}{}
}

// Slice returns the members in no particular order.
func (s Set[K]) Slice() []K {
	out := make([]K, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

type namespace[K comparable, I any] struct {
	pred    Predicate[I]
	members Set[K]
}

// Index holds every namespace plus the info of each admitted id.
type Index[K comparable, I any] struct {
	spaces map[string]*namespace[K, I]
	order  []string
	infos  map[K]I
}

func New[K comparable, I any]() *Index[K, I] {
	return &Index[K, I]{
		spaces: make(map[string]*namespace[K, I]),
		infos:  make(map[K]I),
	}
}

// Register adds or replaces a namespace. Its members are computed from the ids already
// admitted, so a namespace registered late still sees live ids.
func (x *Index[K, I]) Register(name string, pred Predicate[I]) {
	ns := &namespace[K, I]{pred: pred, members: make(Set[K])}
	for id, info := range x.infos {
		if pred(info) {
			ns.members.Add(id)
		}
	}
	if _, exists := x.spaces[name]; !exists {
		x.order = append(x.order, name)
	}
	x.spaces[name] = ns
}

// Admit records info for id and adds id to every namespace whose predicate holds.
// Admitting an id twice re-evaluates its membership.
func (x *Index[K, I]) Admit(id K, info I) {
	x.infos[id] = info
	for _, ns := range x.spaces {
		if ns.pred(info) {
			ns.members.Add(id)
		} else {
			delete(ns.members, id)
		}
	}
}

// Evict removes id from every namespace.
func (x *Index[K, I]) Evict(id K) {
	if _, ok := x.infos[id]; !ok {
		return
	}
	delete(x.infos, id)
	for _, ns := range x.spaces {
		delete(ns.members, id)
	}
}

// Of returns a fresh set holding the union of the named namespaces. Unknown names
// contribute nothing.
func (x *Index[K, I]) Of(names ...string) Set[K] {
	out := make(Set[K])
	for _, name := range names {
		ns, ok := x.spaces[name]
		if !ok {
			continue
		}
		for id := range ns.members {
			out.Add(id)
		}
	}
	return out
}

func (x *Index[K, I]) Has(name string) bool {
	_, ok := x.spaces[name]
	return ok
}

// Len reports the size of one namespace, or 0 if it is unknown.
func (x *Index[K, I]) Len(name string) int {
	if ns, ok := x.spaces[name]; ok {
		return len(ns.members)
	}
	return 0
}

// Names lists namespaces in registration order.
func (x *Index[K, I]) Names() []string {
	return append([]string(nil), x.order...)
}

// Contains reports whether id is admitted.
func (x *Index[K, I]) Contains(id K) bool {
	_, ok := x.infos[id]
	return ok
}

// Info returns the info id was admitted with.
func (x *Index[K, I]) Info(id K) (I, bool) {
	info, ok := x.infos[id]
	return info, ok
}

// Sorted returns the members of s in ascending order.
func Sorted[K ~int | ~int64 | ~uint64 | ~uint32 | ~string](s Set[K]) []K {
	out := s.Slice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
