// Package rules holds the conditional movement rules and the move generator built on them.
// A rule is plain data: a predicate kind that decides when it applies and a generator kind
// drawn from a fixed library of movement primitives.
package rules

import (
	"fmt"
	"strings"

	"github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

type PredicateKind string

const (
	WhenAlways       PredicateKind = "always"
	WhenCrossedRiver PredicateKind = "crossed_river"
	WhenOwnHalf      PredicateKind = "own_half"
	WhenInPalace     PredicateKind = "in_palace"
	WhenRegion       PredicateKind = "region"
)

// Region is an inclusive rectangle in board coordinates.
type Region struct {
	MinX int `yaml:"min_x" json:"min_x"`
	MaxX int `yaml:"max_x" json:"max_x"`
	MinY int `yaml:"min_y" json:"min_y"`
	MaxY int `yaml:"max_y" json:"max_y"`
}

func (r Region) contains(p xiangqi.Pos) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

type Predicate struct {
	Kind   PredicateKind `yaml:"kind" json:"kind"`
	Region *Region       `yaml:"region,omitempty" json:"region,omitempty"`
}

// Match evaluates the predicate for pc where it currently stands.
func (p Predicate) Match(_ *xiangqi.Board, pc xiangqi.Piece) bool {
	switch p.Kind {
	case WhenAlways, "":
		return true
	case WhenCrossedRiver:
		return xiangqi.CrossedRiver(pc.Side, pc.Pos)
	case WhenOwnHalf:
		return !xiangqi.CrossedRiver(pc.Side, pc.Pos)
	case WhenInPalace:
		return xiangqi.InPalace(pc.Side, pc.Pos)
	case WhenRegion:
		return p.Region != nil && p.Region.contains(pc.Pos)
	}
	return false
}

func (p Predicate) key() string {
	kind := p.Kind
	if kind == "" {
		kind = WhenAlways
	}
	if p.Region == nil {
		return string(kind)
	}
	r := p.Region
	return fmt.Sprintf("%s[%d,%d,%d,%d]", kind, r.MinX, r.MaxX, r.MinY, r.MaxY)
}

type GeneratorKind string

const (
	MoveStep     GeneratorKind = "step"
	MoveSlide    GeneratorKind = "slide"
	MoveCannon   GeneratorKind = "cannon"
	MoveHorse    GeneratorKind = "horse"
	MoveElephant GeneratorKind = "elephant"
)

// Direction is side-relative: forward points toward the opponent.
type Direction string

const (
	DirForward    Direction = "forward"
	DirBackward   Direction = "backward"
	DirLateral    Direction = "lateral"
	DirOrthogonal Direction = "orthogonal"
	DirDiagonal   Direction = "diagonal"
)

type Confine string

const (
	ConfineNone    Confine = ""
	ConfinePalace  Confine = "palace"
	ConfineOwnHalf Confine = "own_half"
)

// Generator parameterizes one movement primitive. Range 0 means the primitive default:
// one square for step, unlimited for slide and cannon.
type Generator struct {
	Kind       GeneratorKind `yaml:"kind" json:"kind"`
	Directions []Direction   `yaml:"directions,omitempty" json:"directions,omitempty"`
	Range      int           `yaml:"range,omitempty" json:"range,omitempty"`
	Confine    Confine       `yaml:"confine,omitempty" json:"confine,omitempty"`
}

func (g Generator) key() string {
	dirs := make([]string, 0, len(g.Directions))
	for _, d := range g.Directions {
		dirs = append(dirs, string(d))
	}
	return fmt.Sprintf("%s(%s;%d;%s)", g.Kind, strings.Join(dirs, ","), g.Range, g.Confine)
}

// Rule grants pc the destinations of Move whenever When holds. An Override rule replaces
// earlier rules for the same piece and predicate during a merge.
type Rule struct {
	Piece    xiangqi.PieceType `yaml:"piece" json:"piece"`
	When     Predicate         `yaml:"when" json:"when"`
	Move     Generator         `yaml:"move" json:"move"`
	Override bool              `yaml:"override,omitempty" json:"override,omitempty"`
}

func (r Rule) slot() string { return string(r.Piece) + "|" + r.When.key() }

func (r Rule) key() string { return r.slot() + "|" + r.Move.key() }

func (r Rule) String() string {
	s := fmt.Sprintf("%s when %s: %s", r.Piece, r.When.key(), r.Move.key())
	if r.Override {
		s += " (override)"
	}
	return s
}

// Validate rejects unknown kinds so a malformed custom rule cannot reach the interpreter.
func (r Rule) Validate() error {
	if !r.Piece.Valid() {
		return fmt.Errorf("rule: unknown piece %q", r.Piece)
	}
	switch r.When.Kind {
	case "", WhenAlways, WhenCrossedRiver, WhenOwnHalf, WhenInPalace:
	case WhenRegion:
		if r.When.Region == nil {
			return fmt.Errorf("rule %s: region predicate without region", r.Piece)
		}
		reg := *r.When.Region
		if reg.MinX > reg.MaxX || reg.MinY > reg.MaxY {
			return fmt.Errorf("rule %s: empty region", r.Piece)
		}
	default:
		return fmt.Errorf("rule %s: unknown predicate %q", r.Piece, r.When.Kind)
	}
	switch r.Move.Kind {
	case MoveStep, MoveSlide, MoveCannon, MoveHorse, MoveElephant:
	default:
		return fmt.Errorf("rule %s: unknown generator %q", r.Piece, r.Move.Kind)
	}
	for _, d := range r.Move.Directions {
		switch d {
		case DirForward, DirBackward, DirLateral, DirOrthogonal, DirDiagonal:
		default:
			return fmt.Errorf("rule %s: unknown direction %q", r.Piece, d)
		}
	}
	switch r.Move.Confine {
	case ConfineNone, ConfinePalace, ConfineOwnHalf:
	default:
		return fmt.Errorf("rule %s: unknown confinement %q", r.Piece, r.Move.Confine)
	}
	if r.Move.Range < 0 {
		return fmt.Errorf("rule %s: negative range", r.Piece)
	}
	return nil
}
