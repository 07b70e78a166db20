package entity

import "github.com/go-gl/mathgl/mgl64"

// CommandKind tags the Command sum type.
type CommandKind int

const (
	CommandSpawn CommandKind = iota
	CommandRemove
	CommandSetBody
	CommandSetForce
	CommandApplyImpulse
)

// BodyPatch carries a partial override of a Body's direct fields for
// SetBody. A nil pointer field means "leave unchanged".
type BodyPatch struct {
	Position    *mgl64.Vec3
	Orientation *mgl64.Quat
	VLin        *mgl64.Vec3
	VAng        *mgl64.Vec3
	InvMass     *float64
	Restitution *float64
	Friction    *float64
	Shape       Shape // nil means unchanged
	Scale       *float64
}

// Apply overwrites the set fields of b with the patch's values.
func (p BodyPatch) Apply(b *Body) {
	if p.Position != nil {
		b.Position = *p.Position
	}
	if p.Orientation != nil {
		b.Orientation = *p.Orientation
	}
	if p.VLin != nil {
		b.VLin = *p.VLin
	}
	if p.VAng != nil {
		b.VAng = *p.VAng
	}
	if p.InvMass != nil {
		b.InvMass = *p.InvMass
	}
	if p.Restitution != nil {
		b.Restitution = *p.Restitution
	}
	if p.Friction != nil {
		b.Friction = *p.Friction
	}
	if p.Shape != nil {
		b.Shape = p.Shape
	}
	if p.Scale != nil {
		b.Scale = *p.Scale
	}
	b.RecomputeAABB()
}

// Command is the tagged variant emitted by the external API and
// consumed, one at a time and in arrival order, by the orchestrator's
// Phase A.
type Command struct {
	Kind CommandKind

	// Spawn
	Template     string
	InitialBody  Body

	// Remove / SetBody / SetForce / ApplyImpulse
	BodyID BodyID

	// SetBody
	Patch BodyPatch

	// SetForce
	BoosterIndex int
	Force        float64

	// ApplyImpulse
	LinearImpulse  mgl64.Vec3
	AngularImpulse mgl64.Vec3
}

// Result is what a Command resolves to; exactly one of BodyID/Err is
// meaningful depending on Kind.
type Result struct {
	BodyID BodyID
	Err    error
}

// Envelope bundles a Command with the reply channel the façade uses to
// surface the synchronous result to the original caller (spec.md §4.2).
type Envelope struct {
	Command Command
	Reply   chan Result
}

// Template is a named, reusable initial body used by Spawn commands
// that omit fields; it is overridden field-by-field by InitialBody.
type Template struct {
	Name string
	Body Body
}

// TemplateRegistry resolves template names to a base Body at spawn time.
// Recovered from the original Azrael project's template-based spawn flow
// (original_source/azrael, demos/demo_default.py); filled once by
// NewTemplateRegistry and read-only thereafter, so no locking is needed.
type TemplateRegistry struct {
	templates map[string]Body
}

// NewTemplateRegistry builds a registry from a list of templates.
func NewTemplateRegistry(templates ...Template) *TemplateRegistry {
	r := &TemplateRegistry{templates: make(map[string]Body, len(templates))}
	for _, t := range templates {
		r.templates[t.Name] = t.Body
	}
	return r
}

// Resolve returns a copy of the named template's base body, or
// ErrUnknownTemplate if name is not registered. An empty name resolves
// to a bare default body (InvMass=1, no shape).
func (r *TemplateRegistry) Resolve(name string) (Body, error) {
	if name == "" {
		return Body{InvMass: 1, Orientation: mgl64.QuatIdent(), Scale: 1, Shape: Empty{}}, nil
	}
	base, ok := r.templates[name]
	if !ok {
		return Body{}, ErrUnknownTemplate
	}
	return base.Clone(), nil
}
