// Package template compiles partial, inheritable entity descriptions into fully
// resolved records and lowers those records into engine construction parameters.
//
// Every resolved type (Form, Part, Structure, Template) has a partial counterpart
// (FormSpec, PartSpec, StructureSpec, TemplateSpec) whose scalar fields are pointers:
// nil means "not supplied". Merges are right-biased and shallow per record, but recurse
// into nested parts and forms. Slices are always replaced wholesale.
package template

// FormType selects the geometry variant of a Form.
type FormType string

const (
	Circle  FormType = "circle"
	Box     FormType = "box"
	Edge    FormType = "edge"
	Chain   FormType = "chain"
	Polygon FormType = "polygon"
)

// StructureType selects the engine body category of a Structure.
type StructureType string

const (
	Entity  StructureType = "entity"
	Barrier StructureType = "barrier"
	Terrain StructureType = "terrain"
)

// DefaultName is the structure name every single-body kind uses.
const DefaultName = "default"

type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Form is a resolved geometry description. Which fields matter depends on Type:
// circle uses X, Y, R; box uses X, Y, W, H; edge uses X, Y, X2, Y2, Prev, Next;
// chain uses Points, UseLoop, Prev, Next; polygon uses Points.
type Form struct {
	Type    FormType `json:"type" yaml:"type"`
	X       float64  `json:"x" yaml:"x"`
	Y       float64  `json:"y" yaml:"y"`
	R       float64  `json:"r,omitempty" yaml:"r,omitempty"`
	W       float64  `json:"w,omitempty" yaml:"w,omitempty"`
	H       float64  `json:"h,omitempty" yaml:"h,omitempty"`
	X2      float64  `json:"x2,omitempty" yaml:"x2,omitempty"`
	Y2      float64  `json:"y2,omitempty" yaml:"y2,omitempty"`
	Points  []Point  `json:"points,omitempty" yaml:"points,omitempty"`
	UseLoop bool     `json:"useLoop,omitempty" yaml:"useLoop,omitempty"`
	Prev    *Point   `json:"prev,omitempty" yaml:"prev,omitempty"`
	Next    *Point   `json:"next,omitempty" yaml:"next,omitempty"`
}

type FormSpec struct {
	Type    *FormType `json:"type,omitempty" yaml:"type,omitempty"`
	X       *float64  `json:"x,omitempty" yaml:"x,omitempty"`
	Y       *float64  `json:"y,omitempty" yaml:"y,omitempty"`
	R       *float64  `json:"r,omitempty" yaml:"r,omitempty"`
	W       *float64  `json:"w,omitempty" yaml:"w,omitempty"`
	H       *float64  `json:"h,omitempty" yaml:"h,omitempty"`
	X2      *float64  `json:"x2,omitempty" yaml:"x2,omitempty"`
	Y2      *float64  `json:"y2,omitempty" yaml:"y2,omitempty"`
	Points  []Point   `json:"points,omitempty" yaml:"points,omitempty"`
	UseLoop *bool     `json:"useLoop,omitempty" yaml:"useLoop,omitempty"`
	Prev    *Point    `json:"prev,omitempty" yaml:"prev,omitempty"`
	Next    *Point    `json:"next,omitempty" yaml:"next,omitempty"`
}

// Part is one fixture: a form plus material and collision filtering.
type Part struct {
	Form         Form    `json:"form" yaml:"form"`
	Density      float64 `json:"density" yaml:"density"`
	Friction     float64 `json:"friction" yaml:"friction"`
	Elasticity   float64 `json:"elasticity" yaml:"elasticity"`
	Channels     []int   `json:"channels" yaml:"channels"`
	CollidesWith []int   `json:"collidesWith" yaml:"collidesWith"`
	// UseCollision false turns the fixture into a sensor.
	UseCollision bool `json:"useCollision" yaml:"useCollision"`
}

type PartSpec struct {
	Form         *FormSpec `json:"form,omitempty" yaml:"form,omitempty"`
	Density      *float64  `json:"density,omitempty" yaml:"density,omitempty"`
	Friction     *float64  `json:"friction,omitempty" yaml:"friction,omitempty"`
	Elasticity   *float64  `json:"elasticity,omitempty" yaml:"elasticity,omitempty"`
	Channels     []int     `json:"channels,omitempty" yaml:"channels,omitempty"`
	CollidesWith []int     `json:"collidesWith,omitempty" yaml:"collidesWith,omitempty"`
	UseCollision *bool     `json:"useCollision,omitempty" yaml:"useCollision,omitempty"`
}

// Model is the body-level part of a Structure.
type Model struct {
	Type    StructureType `json:"type" yaml:"type"`
	X       float64       `json:"x" yaml:"x"`
	Y       float64       `json:"y" yaml:"y"`
	VX      float64       `json:"vx" yaml:"vx"`
	VY      float64       `json:"vy" yaml:"vy"`
	Ang     float64       `json:"ang" yaml:"ang"`
	Rot     float64       `json:"rot" yaml:"rot"`
	DampVel float64       `json:"dampVel" yaml:"dampVel"`
	DampRot float64       `json:"dampRot" yaml:"dampRot"`

	// Offload puts the body to sleep at construction.
	Offload           bool `json:"offload" yaml:"offload"`
	UseRotate         bool `json:"useRotate" yaml:"useRotate"`
	UseOffload        bool `json:"useOffload" yaml:"useOffload"`
	UseCollision      bool `json:"useCollision" yaml:"useCollision"`
	UseExactCollision bool `json:"useExactCollision" yaml:"useExactCollision"`
}

type ModelSpec struct {
	Type    *StructureType `json:"type,omitempty" yaml:"type,omitempty"`
	X       *float64       `json:"x,omitempty" yaml:"x,omitempty"`
	Y       *float64       `json:"y,omitempty" yaml:"y,omitempty"`
	VX      *float64       `json:"vx,omitempty" yaml:"vx,omitempty"`
	VY      *float64       `json:"vy,omitempty" yaml:"vy,omitempty"`
	Ang     *float64       `json:"ang,omitempty" yaml:"ang,omitempty"`
	Rot     *float64       `json:"rot,omitempty" yaml:"rot,omitempty"`
	DampVel *float64       `json:"dampVel,omitempty" yaml:"dampVel,omitempty"`
	DampRot *float64       `json:"dampRot,omitempty" yaml:"dampRot,omitempty"`

	Offload           *bool `json:"offload,omitempty" yaml:"offload,omitempty"`
	UseRotate         *bool `json:"useRotate,omitempty" yaml:"useRotate,omitempty"`
	UseOffload        *bool `json:"useOffload,omitempty" yaml:"useOffload,omitempty"`
	UseCollision      *bool `json:"useCollision,omitempty" yaml:"useCollision,omitempty"`
	UseExactCollision *bool `json:"useExactCollision,omitempty" yaml:"useExactCollision,omitempty"`
}

// Structure is one body: its model plus an ordered list of parts.
type Structure struct {
	Model `yaml:",inline"`
	Parts []Part `json:"parts" yaml:"parts"`
}

type StructureSpec struct {
	ModelSpec `yaml:",inline"`
	Parts     []PartSpec `json:"parts,omitempty" yaml:"parts,omitempty"`
}

// Relation is reserved for inter-structure joints. Nothing consumes it yet.
type Relation struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	A    string `json:"a,omitempty" yaml:"a,omitempty"`
	B    string `json:"b,omitempty" yaml:"b,omitempty"`
}

type RelationSpec = Relation

// Template is a named group of structures, the unit a kind resolves to.
type Template struct {
	Structures map[string]Structure `json:"structures" yaml:"structures"`
	Relations  []Relation           `json:"relations" yaml:"relations"`
}

type TemplateSpec struct {
	Structures map[string]StructureSpec `json:"structures,omitempty" yaml:"structures,omitempty"`
	Relations  []RelationSpec           `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Info is a template stripped of its parts, tagged with the kind name. Namespace
// predicates are evaluated against it.
type Info struct {
	Kind       string
	Structures map[string]Model
}

// Type reports the type of the default structure.
func (i Info) Type() (StructureType, bool) {
	m, ok := i.Structures[DefaultName]
	return m.Type, ok
}

// Record is a sparse set of protocol fields for one structure.
type Record map[string]float64
