package template

// Protocol field names. These are the only structure fields a state record can carry.
const (
	FieldX       = "x"
	FieldY       = "y"
	FieldVX      = "vx"
	FieldVY      = "vy"
	FieldAng     = "ang"
	FieldRot     = "rot"
	FieldDampVel = "dampVel"
	FieldDampRot = "dampRot"
)

// Fields lists every field name a protocol may use.
var Fields = []string{FieldX, FieldY, FieldVX, FieldVY, FieldAng, FieldRot, FieldDampVel, FieldDampRot}

// IsField reports whether name is a known protocol field.
func IsField(name string) bool {
	_, ok := (&Model{}).ref(name)
	return ok
}

func (m *Model) ref(name string) (*float64, bool) {
	switch name {
	case FieldX:
		return &m.X, true
	case FieldY:
		return &m.Y, true
	case FieldVX:
		return &m.VX, true
	case FieldVY:
		return &m.VY, true
	case FieldAng:
		return &m.Ang, true
	case FieldRot:
		return &m.Rot, true
	case FieldDampVel:
		return &m.DampVel, true
	case FieldDampRot:
		return &m.DampRot, true
	default:
		return nil, false
	}
}

// Field reads a protocol field off the model.
func (m Model) Field(name string) (float64, bool) {
	p, ok := m.ref(name)
	if !ok {
		return 0, false
	}
	return *p, true
}

// Apply writes every known field of rec into the model and ignores the rest.
func (m *Model) Apply(rec Record) {
	for name, v := range rec {
		if p, ok := m.ref(name); ok {
			*p = v
		}
	}
}

// Clone copies the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
