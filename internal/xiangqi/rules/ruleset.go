package rules

import (
	"sort"
	"strings"

	"github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

// FlagAllowFacingGenerals lifts the face-off prohibition.
const FlagAllowFacingGenerals = "allow_facing_generals"

// RuleSet is an ordered rule list plus boolean switches. Order is registration order.
type RuleSet struct {
	Name  string          `yaml:"name" json:"name"`
	Rules []Rule          `yaml:"rules" json:"rules"`
	Flags map[string]bool `yaml:"flags,omitempty" json:"flags,omitempty"`
}

func (rs RuleSet) Flag(name string) bool { return rs.Flags[name] }

// Validate checks every rule.
func (rs RuleSet) Validate() error {
	for _, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy; sessions keep their own copy.
func (rs RuleSet) Clone() RuleSet {
	out := RuleSet{Name: rs.Name, Rules: make([]Rule, len(rs.Rules))}
	for i, r := range rs.Rules {
		out.Rules[i] = cloneRule(r)
	}
	if rs.Flags != nil {
		out.Flags = make(map[string]bool, len(rs.Flags))
		for k, v := range rs.Flags {
			out.Flags[k] = v
		}
	}
	return out
}

func cloneRule(r Rule) Rule {
	c := r
	if r.When.Region != nil {
		reg := *r.When.Region
		c.When.Region = &reg
	}
	if r.Move.Directions != nil {
		c.Move.Directions = append([]Direction(nil), r.Move.Directions...)
	}
	return c
}

// Merge layers overlays on base in order. A plain overlay rule adds an alternative
// generator next to whatever already matches; an override rule first drops every
// accumulated rule with the same piece and predicate. Flags are last-wins.
// Merge(Merge(b, o1), o2) equals Merge(b, o1, o2).
func Merge(base RuleSet, overlays ...RuleSet) RuleSet {
	out := RuleSet{Name: base.Name, Flags: map[string]bool{}}
	names := []string{}
	if base.Name != "" {
		names = append(names, base.Name)
	}
	seen := map[string]bool{}
	apply := func(layer RuleSet) {
		for _, r := range layer.Rules {
			if r.Override {
				slot := r.slot()
				kept := out.Rules[:0]
				for _, cur := range out.Rules {
					if cur.slot() == slot {
						delete(seen, cur.key())
						continue
					}
					kept = append(kept, cur)
				}
				out.Rules = kept
			}
			k := r.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			c := cloneRule(r)
			c.Override = false
			out.Rules = append(out.Rules, c)
		}
		for f, v := range layer.Flags {
			out.Flags[f] = v
		}
	}
	apply(base)
	for _, o := range overlays {
		apply(o)
		if o.Name != "" {
			names = append(names, o.Name)
		}
	}
	out.Name = strings.Join(names, "+")
	return out
}

// MovesFor unions the destinations of every rule matching pc. A piece with no matching
// rule has no moves. Results are deduplicated and sorted row-major.
func MovesFor(b *xiangqi.Board, pc xiangqi.Piece, rs RuleSet) []xiangqi.Pos {
	set := map[xiangqi.Pos]struct{}{}
	for _, r := range rs.Rules {
		if r.Piece != pc.Type || !r.When.Match(b, pc) {
			continue
		}
		for _, to := range r.Move.Destinations(b, pc) {
			set[to] = struct{}{}
		}
	}
	out := make([]xiangqi.Pos, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sortPos(out)
	return out
}

func sortPos(ps []xiangqi.Pos) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Y != ps[j].Y {
			return ps[i].Y < ps[j].Y
		}
		return ps[i].X < ps[j].X
	})
}

func containsPos(ps []xiangqi.Pos, p xiangqi.Pos) bool {
	for _, q := range ps {
		if q == p {
			return true
		}
	}
	return false
}
