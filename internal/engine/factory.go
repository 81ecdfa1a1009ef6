package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jakecoffman/cp"
)

type TypeKind int

const (
	KindShape TypeKind = iota
	KindConstraint
)

func (k TypeKind) String() string {
	switch k {
	case KindShape:
		return "shape"
	case KindConstraint:
		return "constraint"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type TypeDescriptor struct {
	Name string
	Kind TypeKind
}

// Factory knows every type the engine can construct. Systems may only be
// built from a factory after RegisterTypes has run on it.
type Factory struct {
	mu        sync.RWMutex
	types     map[string]TypeDescriptor
	destroyed bool
}

func NewFactory() *Factory {
	return &Factory{types: make(map[string]TypeDescriptor)}
}

func (f *Factory) Register(d TypeDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyed {
		return ErrFactoryDestroyed
	}
	if _, ok := f.types[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, d.Name)
	}
	f.types[d.Name] = d
	return nil
}

func (f *Factory) Lookup(name string) (TypeDescriptor, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.types[name]
	return d, ok
}

// Types lists registered descriptors sorted by name.
func (f *Factory) Types() []TypeDescriptor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]TypeDescriptor, 0, len(f.types))
	for _, d := range f.types {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.types)
}

// Destroy forgets every type. A destroyed factory cannot be reused.
func (f *Factory) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = nil
	f.destroyed = true
}

func (f *Factory) Destroyed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.destroyed
}

func (f *Factory) ready() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.destroyed {
		return ErrFactoryDestroyed
	}
	if len(f.types) == 0 {
		return ErrTypesNotRegistered
	}
	return nil
}

func (f *Factory) check(name string, kind TypeKind) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.destroyed {
		return ErrFactoryDestroyed
	}
	d, ok := f.types[name]
	if !ok || d.Kind != kind {
		return fmt.Errorf("%w: %s %s", ErrUnknownType, kind, name)
	}
	return nil
}

// CreateShape builds a shape attached to body.
func (f *Factory) CreateShape(body *cp.Body, s ShapeSettings) (*cp.Shape, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil shape", ErrInvalidSettings)
	}
	if err := f.check(s.TypeName(), KindShape); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s.create(body), nil
}

// CreateConstraint builds a constraint between a and b.
func (f *Factory) CreateConstraint(a, b *cp.Body, s ConstraintSettings) (*cp.Constraint, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil constraint", ErrInvalidSettings)
	}
	if err := f.check(s.TypeName(), KindConstraint); err != nil {
		return nil, err
	}
	return s.create(a, b), nil
}

// RegisterTypes registers every built-in shape and constraint type.
func RegisterTypes(f *Factory) error {
	builtins := []TypeDescriptor{
		{Name: TypeSphere, Kind: KindShape},
		{Name: TypeBox, Kind: KindShape},
		{Name: TypeSegment, Kind: KindShape},
		{Name: TypePin, Kind: KindConstraint},
		{Name: TypeSlide, Kind: KindConstraint},
		{Name: TypePivot, Kind: KindConstraint},
		{Name: TypeDampedSpring, Kind: KindConstraint},
	}
	for _, d := range builtins {
		if err := f.Register(d); err != nil {
			return err
		}
	}
	return nil
}
