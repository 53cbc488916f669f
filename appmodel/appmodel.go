// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package appmodel

// AppModel is the input interface the core consumes: class-definition
// lookup by type, plus iteration over the program classes. It is
// satisfied by *Program below; external collaborators (the bytecode
// parser) build a *Program once and hand it to the enqueuer as an
// AppModel, never as a concrete type, so the core never assumes more
// than this contract.
type AppModel interface {
	ClassDefinition(t Type) (*ClassDef, bool)
	ProgramClasses() []*ClassDef
	Context() *Context
}

// Program is the concrete, immutable-during-tracing app model. Classes are added once at construction; the only later
// mutation is synthetic classes appended through SyntheticItems,
// which call AddClass themselves after minting fresh program classes.
type Program struct {
	ctx     *Context
	classes map[Type]*ClassDef
	// programOrder preserves the order classes were added in, needed for
	// the deterministic-enumeration guarantee.
	programOrder []Type
}

// NewProgram returns an empty Program backed by ctx.
func NewProgram(ctx *Context) *Program {
	return &Program{ctx: ctx, classes: make(map[Type]*ClassDef)}
}

// Context returns the interning context this model's handles belong to.
func (p *Program) Context() *Context { return p.ctx }

// AddClass registers a class definition. Called by the ingest harness
// while building the initial model, and later by the enqueuer on behalf
// of SyntheticItems when it mints a fresh helper class.
func (p *Program) AddClass(c *ClassDef) {
	if _, exists := p.classes[c.Type]; !exists && c.Kind == ClassProgram {
		p.programOrder = append(p.programOrder, c.Type)
	}
	p.classes[c.Type] = c
}

// ClassDefinition looks up a class/interface by type.
func (p *Program) ClassDefinition(t Type) (*ClassDef, bool) {
	c, ok := p.classes[t]
	return c, ok
}

// ProgramClasses returns every program-kind class, in the order they
// were added.
func (p *Program) ProgramClasses() []*ClassDef {
	out := make([]*ClassDef, 0, len(p.programOrder))
	for _, t := range p.programOrder {
		out = append(out, p.classes[t])
	}
	return out
}

// SuperclassChain walks from c's superclass to the root, calling visit
// for each class definition found. It stops early if visit returns
// false, or if a superclass type has no known definition (a missing
// class, reported by the caller through resolve.MissingClassReport, not
// here: the app model itself never raises an error for this).
func (p *Program) SuperclassChain(c *ClassDef, visit func(*ClassDef) bool) {
	cur := c
	for cur.Super.IsValid() {
		super, ok := p.ClassDefinition(cur.Super)
		if !ok {
			return
		}
		if !visit(super) {
			return
		}
		cur = super
	}
}

// IsNestMate reports whether a and b belong to the same nest, following
// the nest-host/nest-members attribute. Used by the resolver's
// invoke-special accessibility check ("respecting nest membership").
func IsNestMate(p *Program, a, b Type) bool {
	if a == b {
		return true
	}
	hostA := nestHost(p, a)
	hostB := nestHost(p, b)
	return hostA.IsValid() && hostA == hostB
}

func nestHost(p *Program, t Type) Type {
	c, ok := p.ClassDefinition(t)
	if !ok {
		return Invalid
	}
	if c.NestHost.IsValid() {
		return c.NestHost
	}
	return c.Type
}
