package template

import (
	"slices"
	"sort"
)

// Ptr returns a pointer to v, for filling spec fields inline.
func Ptr[T any](v T) *T {
	return &v
}

func DefaultForm() Form {
	return Form{Type: Circle, R: 1}
}

// DefineForm merges spec over DefaultForm. Fields are not checked against the form
// type; lowering decides what a type can be built from.
func DefineForm(spec FormSpec) Form {
	f := DefaultForm()
	set(&f.Type, spec.Type)
	set(&f.X, spec.X)
	set(&f.Y, spec.Y)
	set(&f.R, spec.R)
	set(&f.W, spec.W)
	set(&f.H, spec.H)
	set(&f.X2, spec.X2)
	set(&f.Y2, spec.Y2)
	set(&f.UseLoop, spec.UseLoop)
	if spec.Points != nil {
		f.Points = slices.Clone(spec.Points)
	}
	f.Prev = clonePoint(spec.Prev)
	f.Next = clonePoint(spec.Next)
	return f
}

// Spec lifts a resolved form back into a fully populated spec.
func (f Form) Spec() FormSpec {
	return FormSpec{
		Type:    Ptr(f.Type),
		X:       Ptr(f.X),
		Y:       Ptr(f.Y),
		R:       Ptr(f.R),
		W:       Ptr(f.W),
		H:       Ptr(f.H),
		X2:      Ptr(f.X2),
		Y2:      Ptr(f.Y2),
		Points:  slices.Clone(f.Points),
		UseLoop: Ptr(f.UseLoop),
		Prev:    clonePoint(f.Prev),
		Next:    clonePoint(f.Next),
	}
}

func DefaultPart() Part {
	return Part{
		Form:         DefaultForm(),
		Density:      1,
		Channels:     []int{0},
		CollidesWith: []int{0},
		UseCollision: true,
	}
}

// DefinePart merges spec over DefaultPart. A supplied form is merged over DefaultForm,
// not over the default part's form.
func DefinePart(spec PartSpec) Part {
	p := DefaultPart()
	if spec.Form != nil {
		p.Form = DefineForm(*spec.Form)
	}
	set(&p.Density, spec.Density)
	set(&p.Friction, spec.Friction)
	set(&p.Elasticity, spec.Elasticity)
	set(&p.UseCollision, spec.UseCollision)
	if spec.Channels != nil {
		p.Channels = slices.Clone(spec.Channels)
	}
	if spec.CollidesWith != nil {
		p.CollidesWith = slices.Clone(spec.CollidesWith)
	}
	return p
}

func (p Part) Spec() PartSpec {
	form := p.Form.Spec()
	return PartSpec{
		Form:         &form,
		Density:      Ptr(p.Density),
		Friction:     Ptr(p.Friction),
		Elasticity:   Ptr(p.Elasticity),
		Channels:     slices.Clone(p.Channels),
		CollidesWith: slices.Clone(p.CollidesWith),
		UseCollision: Ptr(p.UseCollision),
	}
}

func DefaultModel() Model {
	return Model{
		Type:              Entity,
		UseRotate:         true,
		UseOffload:        true,
		UseCollision:      true,
		UseExactCollision: true,
	}
}

func DefaultStructure() Structure {
	return Structure{
		Model: DefaultModel(),
		Parts: []Part{DefaultPart()},
	}
}

// DefineStructure merges spec over DefaultStructure and compiles each supplied part.
func DefineStructure(spec StructureSpec) Structure {
	s := DefaultStructure()
	s.Model = s.Model.merge(spec.ModelSpec)
	if spec.Parts != nil {
		s.Parts = make([]Part, len(spec.Parts))
		for i, part := range spec.Parts {
			s.Parts[i] = DefinePart(part)
		}
	}
	return s
}

func (m Model) merge(spec ModelSpec) Model {
	set(&m.Type, spec.Type)
	set(&m.X, spec.X)
	set(&m.Y, spec.Y)
	set(&m.VX, spec.VX)
	set(&m.VY, spec.VY)
	set(&m.Ang, spec.Ang)
	set(&m.Rot, spec.Rot)
	set(&m.DampVel, spec.DampVel)
	set(&m.DampRot, spec.DampRot)
	set(&m.Offload, spec.Offload)
	set(&m.UseRotate, spec.UseRotate)
	set(&m.UseOffload, spec.UseOffload)
	set(&m.UseCollision, spec.UseCollision)
	set(&m.UseExactCollision, spec.UseExactCollision)
	return m
}

func (m Model) Spec() ModelSpec {
	return ModelSpec{
		Type:              Ptr(m.Type),
		X:                 Ptr(m.X),
		Y:                 Ptr(m.Y),
		VX:                Ptr(m.VX),
		VY:                Ptr(m.VY),
		Ang:               Ptr(m.Ang),
		Rot:               Ptr(m.Rot),
		DampVel:           Ptr(m.DampVel),
		DampRot:           Ptr(m.DampRot),
		Offload:           Ptr(m.Offload),
		UseRotate:         Ptr(m.UseRotate),
		UseOffload:        Ptr(m.UseOffload),
		UseCollision:      Ptr(m.UseCollision),
		UseExactCollision: Ptr(m.UseExactCollision),
	}
}

func (s Structure) Spec() StructureSpec {
	parts := make([]PartSpec, len(s.Parts))
	for i, p := range s.Parts {
		parts[i] = p.Spec()
	}
	return StructureSpec{ModelSpec: s.Model.Spec(), Parts: parts}
}

// Merge returns s with every field supplied by over replacing its own.
func (s StructureSpec) Merge(over StructureSpec) StructureSpec {
	m := s.ModelSpec
	o := over.ModelSpec
	pick(&m.Type, o.Type)
	pick(&m.X, o.X)
	pick(&m.Y, o.Y)
	pick(&m.VX, o.VX)
	pick(&m.VY, o.VY)
	pick(&m.Ang, o.Ang)
	pick(&m.Rot, o.Rot)
	pick(&m.DampVel, o.DampVel)
	pick(&m.DampRot, o.DampRot)
	pick(&m.Offload, o.Offload)
	pick(&m.UseRotate, o.UseRotate)
	pick(&m.UseOffload, o.UseOffload)
	pick(&m.UseCollision, o.UseCollision)
	pick(&m.UseExactCollision, o.UseExactCollision)

	merged := StructureSpec{ModelSpec: m, Parts: s.Parts}
	if over.Parts != nil {
		merged.Parts = over.Parts
	}
	return merged
}

// DefineRelation passes a relation through unchanged.
func DefineRelation(spec RelationSpec) Relation {
	return spec
}

func DefaultTemplate() Template {
	return Template{
		Structures: map[string]Structure{DefaultName: DefaultStructure()},
		Relations:  []Relation{},
	}
}

// DefineTemplate merges spec over DefaultTemplate. Supplying structures replaces the
// whole mapping; each entry is compiled by DefineStructure.
func DefineTemplate(spec TemplateSpec) Template {
	t := DefaultTemplate()
	if spec.Structures != nil {
		t.Structures = make(map[string]Structure, len(spec.Structures))
		for name, s := range spec.Structures {
			t.Structures[name] = DefineStructure(s)
		}
	}
	if spec.Relations != nil {
		t.Relations = make([]Relation, len(spec.Relations))
		for i, r := range spec.Relations {
			t.Relations[i] = DefineRelation(r)
		}
	}
	return t
}

func (t Template) Spec() TemplateSpec {
	spec := TemplateSpec{
		Structures: make(map[string]StructureSpec, len(t.Structures)),
		Relations:  slices.Clone(t.Relations),
	}
	for name, s := range t.Structures {
		spec.Structures[name] = s.Spec()
	}
	return spec
}

// Merge is the template-level shallow merge: whatever over supplies wins wholesale.
func (t TemplateSpec) Merge(over TemplateSpec) TemplateSpec {
	merged := t
	if over.Structures != nil {
		merged.Structures = over.Structures
	}
	if over.Relations != nil {
		merged.Relations = over.Relations
	}
	return merged
}

// Clone deep-copies t.
func (t Template) Clone() Template {
	return DefineTemplate(t.Spec())
}

// Names returns the structure names in construction order: the default structure
// first, the rest sorted.
func (t Template) Names() []string {
	names := make([]string, 0, len(t.Structures))
	for name := range t.Structures {
		if name != DefaultName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := t.Structures[DefaultName]; ok {
		names = append([]string{DefaultName}, names...)
	}
	return names
}

// Info strips the parts off t.
func (t Template) Info(kind string) Info {
	info := Info{Kind: kind, Structures: make(map[string]Model, len(t.Structures))}
	for name, s := range t.Structures {
		info.Structures[name] = s.Model
	}
	return info
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func clonePoint(p *Point) *Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
