package vcd

import "fmt"

// Variable is a registered signal. It is immutable once created.
type Variable struct {
	id        uint
	typ       VariableType
	size      uint
	name      string
	scope     int // index into the writer's scope arena
	scopePath string
	kind      encoderKind
}

// ID is the sequential identifier used as the short code in the output.
func (v *Variable) ID() uint { return v.id }

// Ident is the identifier code as written to the file.
func (v *Variable) Ident() string { return fmt.Sprintf("%x", v.id) }

// Type returns the declared VCD type.
func (v *Variable) Type() VariableType { return v.typ }

// Size returns the effective width in bits.
func (v *Variable) Size() uint { return v.size }

// Name returns the variable name within its scope.
func (v *Variable) Name() string { return v.name }

// Scope returns the full path of the owning scope.
func (v *Variable) Scope() string { return v.scopePath }

func (v *Variable) declaration() string {
	return fmt.Sprintf("$var %s %d %x %s $end", v.typ, v.size, v.id, v.name)
}

type varKey struct {
	scope string
	name  string
}

// registry indexes variables by (scope, name) and hands out ids.
type registry struct {
	vars   map[varKey]*Variable
	nextID uint
}

func newRegistry() *registry {
	return &registry{vars: make(map[varKey]*Variable)}
}

func (r *registry) lookup(scope, name string) (*Variable, bool) {
	v, ok := r.vars[varKey{scope, name}]
	return v, ok
}

// add assigns the next id to v and indexes it. A later variable with the
// same key shadows the earlier one for lookups.
func (r *registry) add(v *Variable) {
	v.id = r.nextID
	r.nextID++
	r.vars[varKey{v.scopePath, v.name}] = v
}

func (r *registry) count() int { return int(r.nextID) }
