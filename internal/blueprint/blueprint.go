// Package blueprint describes requirement templates: the ordered slots a
// generated paper must fill from the question bank.
package blueprint

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/qpaper/internal/model"
)

// DefaultName is the name of the built-in unit test blueprint.
const DefaultName = "unit-test"

// ErrUnknown is returned by Registry.Get for a name that was never registered.
var ErrUnknown = errors.New("unknown blueprint")

var validate = validator.New()

// Slot is one requirement line: Count questions of exactly (Part, Marks).
// With NeedsOr every unit of Count takes two distinct questions, main and alternative.
type Slot struct {
	Part    model.Part `json:"part" yaml:"part" validate:"oneof=A B C"`
	Marks   int        `json:"marks" yaml:"marks" validate:"gt=0"`
	Count   int        `json:"count" yaml:"count" validate:"gt=0"`
	NeedsOr bool       `json:"needsOr" yaml:"needsOr"`
}

// Draws returns the number of questions the slot consumes from its bucket.
func (s Slot) Draws() int {
	if s.NeedsOr {
		return s.Count * 2
	}
	return s.Count
}

// Blueprint is an ordered requirement template.
type Blueprint struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Slots []Slot `json:"slots" yaml:"slots" validate:"required,min=1,dive"`
}

// Validate checks every slot.
func (b Blueprint) Validate() error {
	if err := validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("blueprint %q: %s", b.Name, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("blueprint %q: %w", b.Name, err)
	}
	return nil
}

// Normalize returns a copy with part letters upper-cased.
func (b Blueprint) Normalize() Blueprint {
	slots := make([]Slot, len(b.Slots))
	for i, s := range b.Slots {
		s.Part = model.Part(strings.ToUpper(strings.TrimSpace(string(s.Part))))
		slots[i] = s
	}
	b.Slots = slots
	return b
}

// Draws returns the total number of questions the blueprint consumes.
func (b Blueprint) Draws() int {
	n := 0
	for _, s := range b.Slots {
		n += s.Draws()
	}
	return n
}

// Default returns the unit test template: five 2-mark Part A questions,
// two 12-mark Part B questions with alternatives and one 16-mark Part C question with an alternative.
func Default() Blueprint {
	return Blueprint{
		Name: DefaultName,
		Slots: []Slot{
			{Part: model.PartA, Marks: 2, Count: 5},
			{Part: model.PartB, Marks: 12, Count: 2, NeedsOr: true},
			{Part: model.PartC, Marks: 16, Count: 1, NeedsOr: true},
		},
	}
}

type file struct {
	Blueprints []Blueprint `yaml:"blueprints"`
}

// Load reads blueprints from YAML of the form
//
//	blueprints:
//	  - name: model-exam
//	    slots:
//	      - {part: A, marks: 2, count: 10}
//	      - {part: B, marks: 13, count: 5, needsOr: true}
func Load(r io.Reader) ([]Blueprint, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode blueprints: %w", err)
	}
	for i, b := range f.Blueprints {
		b = b.Normalize()
		if err := b.Validate(); err != nil {
			return nil, err
		}
		f.Blueprints[i] = b
	}
	return f.Blueprints, nil
}

// Registry holds named blueprints.
type Registry struct {
	byName map[string]Blueprint
}

// NewRegistry returns a registry seeded with the built-in blueprint.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Blueprint)}
	d := Default()
	r.byName[d.Name] = d
	return r
}

// Add registers blueprints, replacing any existing ones with the same name.
func (r *Registry) Add(bps ...Blueprint) error {
	for _, b := range bps {
		b = b.Normalize()
		if err := b.Validate(); err != nil {
			return err
		}
		r.byName[b.Name] = b
	}
	return nil
}

// Get returns the blueprint with the given name. Empty name means the default.
func (r *Registry) Get(name string) (Blueprint, error) {
	if name == "" {
		name = DefaultName
	}
	b, ok := r.byName[name]
	if !ok {
		return Blueprint{}, fmt.Errorf("%w %q", ErrUnknown, name)
	}
	return b, nil
}

// Names returns registered names in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
