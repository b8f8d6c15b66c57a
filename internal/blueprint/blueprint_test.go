package blueprint

import (
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/qpaper/internal/model"
)

func TestDefault(t *testing.T) {
	d := Default()
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := d.Draws(); got != 5+4+2 {
		t.Errorf("Draws() = %d, want 11", got)
	}
}

func TestSlotDraws(t *testing.T) {
	tests := []struct {
		name string
		slot Slot
		want int
	}{
		{"single", Slot{Part: model.PartA, Marks: 2, Count: 5}, 5},
		{"with or", Slot{Part: model.PartB, Marks: 12, Count: 2, NeedsOr: true}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.slot.Draws(); got != tt.want {
				t.Errorf("Draws() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		bp      Blueprint
		wantErr bool
	}{
		{"ok", Blueprint{Name: "x", Slots: []Slot{{Part: "A", Marks: 2, Count: 1}}}, false},
		{"no name", Blueprint{Slots: []Slot{{Part: "A", Marks: 2, Count: 1}}}, true},
		{"no slots", Blueprint{Name: "x"}, true},
		{"bad part", Blueprint{Name: "x", Slots: []Slot{{Part: "D", Marks: 2, Count: 1}}}, true},
		{"zero marks", Blueprint{Name: "x", Slots: []Slot{{Part: "A", Marks: 0, Count: 1}}}, true},
		{"zero count", Blueprint{Name: "x", Slots: []Slot{{Part: "A", Marks: 2, Count: 0}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bp.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	src := `
blueprints:
  - name: model-exam
    slots:
      - {part: a, marks: 2, count: 10}
      - {part: B, marks: 13, count: 5, needsOr: true}
      - {part: C, marks: 15, count: 1, needsOr: true}
`
	bps, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bps) != 1 {
		t.Fatalf("expected 1 blueprint, got %d", len(bps))
	}
	bp := bps[0]
	if bp.Name != "model-exam" {
		t.Errorf("expected name model-exam, got %q", bp.Name)
	}
	if bp.Slots[0].Part != model.PartA {
		t.Errorf("expected part letter normalized to A, got %q", bp.Slots[0].Part)
	}
	if !bp.Slots[1].NeedsOr || bp.Slots[1].Marks != 13 {
		t.Errorf("unexpected second slot: %+v", bp.Slots[1])
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad part", "blueprints:\n  - name: x\n    slots:\n      - {part: Z, marks: 2, count: 1}\n"},
		{"unknown field", "blueprints:\n  - name: x\n    slots:\n      - {part: A, marks: 2, count: 1, weight: 3}\n"},
		{"not yaml", "blueprints: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	bps, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bps) != 0 {
		t.Errorf("expected no blueprints, got %d", len(bps))
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	d, err := r.Get("")
	if err != nil {
		t.Fatalf("Get default: %v", err)
	}
	if d.Name != DefaultName {
		t.Errorf("expected default blueprint, got %q", d.Name)
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}

	if err := r.Add(Blueprint{Name: "quiz", Slots: []Slot{{Part: "b", Marks: 5, Count: 2}}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	q, err := r.Get("quiz")
	if err != nil {
		t.Fatalf("Get quiz: %v", err)
	}
	if q.Slots[0].Part != model.PartB {
		t.Errorf("expected normalized part B, got %q", q.Slots[0].Part)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "quiz" || names[1] != DefaultName {
		t.Errorf("expected [quiz unit-test], got %v", names)
	}

	if err := r.Add(Blueprint{Name: "bad"}); err == nil {
		t.Error("expected error adding invalid blueprint")
	}
}
