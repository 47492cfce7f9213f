package xiangqi

import (
    "encoding/json"
    "errors"
    "testing"
)

func gen(side string, x, y int) Placement { return Placement{Type: "general", Side: side, X: x, Y: y} }

func TestValidate_NilIsValid(t *testing.T) {
    res := Validate(nil)
    if !res.Valid || len(res.Errors) != 0 { t.Fatalf("nil input: %+v", res) }
    if res.Errors == nil { t.Fatalf("errors must marshal as an empty list") }
    raw, err := json.Marshal(Validate([]Placement{}))
    if err != nil || string(raw) != `{"valid":true,"errors":[]}` { t.Fatalf("empty input: %s err=%v", raw, err) }
}

func TestCheckInvariants_EmptyBoardNeedsGenerals(t *testing.T) {
    err := NewBoard().CheckInvariants()
    var se *SetupError
    if !errors.As(err, &se) || len(se.Errors) != 2 { t.Fatalf("err=%v", err) }
    if se.Errors[0].Code != CodeGeneralCountRed || se.Errors[1].Code != CodeGeneralCountBlack { t.Fatalf("codes=%+v", se.Errors) }
}

func TestValidate_BareGenerals(t *testing.T) {
    cases := []struct {
        name  string
        black Placement
        valid bool
    }{
        {"facing", gen("black", 4, 0), false},
        {"offset", gen("black", 3, 0), true},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            res := Validate([]Placement{gen("red", 4, 9), tc.black})
            if res.Valid != tc.valid { t.Fatalf("valid=%v errors=%v", res.Valid, res.Codes()) }
            if !tc.valid && !res.Has(CodeKingFacing, 4, -1) { t.Fatalf("want king_facing, got %v", res.Codes()) }
        })
    }
}

func TestValidate_FacingBlocked(t *testing.T) {
    res := Validate([]Placement{gen("red", 4, 9), gen("black", 4, 0), {Type: "horse", Side: "red", X: 4, Y: 5}})
    if !res.Valid { t.Fatalf("blocked file should pass: %v", res.Codes()) }
}

func TestValidate_OverlapScenario(t *testing.T) {
    res := Validate([]Placement{
        gen("red", 4, 9), gen("black", 4, 0),
        {Type: "rook", Side: "red", X: 0, Y: 0},
        {Type: "rook", Side: "black", X: 0, Y: 0},
    })
    if res.Valid { t.Fatalf("expected invalid") }
    if !res.Has(CodeOverlap, 0, 0) { t.Fatalf("want overlap at (0,0), got %v", res.Codes()) }
}

func TestValidate_ElephantScenario(t *testing.T) {
    res := Validate([]Placement{{Type: "elephant", Side: "red", X: 0, Y: 0}, gen("red", 4, 9), gen("black", 4, 0)})
    if res.Valid { t.Fatalf("expected invalid") }
    if !res.Has(CodeElephantSquare, 0, 0) { t.Fatalf("want elephant_square at (0,0), got %v", res.Codes()) }
}

func TestValidate_ElephantLattice(t *testing.T) {
    base := []Placement{gen("red", 3, 9), gen("black", 5, 0)}
    ok := []Placement{
        {Type: "elephant", Side: "red", X: 2, Y: 9}, {Type: "elephant", Side: "red", X: 4, Y: 7},
        {Type: "elephant", Side: "black", X: 2, Y: 0}, {Type: "elephant", Side: "black", X: 4, Y: 2},
    }
    bad := []Placement{
        {Type: "elephant", Side: "red", X: 3, Y: 7}, {Type: "elephant", Side: "red", X: 2, Y: 3},
        {Type: "elephant", Side: "black", X: 2, Y: 1}, {Type: "elephant", Side: "black", X: 2, Y: 6},
    }
    for _, p := range ok {
        res := Validate(append(append([]Placement{}, base...), p))
        if !res.Valid { t.Fatalf("%+v rejected: %v", p, res.Codes()) }
    }
    for _, p := range bad {
        res := Validate(append(append([]Placement{}, base...), p))
        if !res.Has(CodeElephantSquare, p.X, p.Y) { t.Fatalf("%+v accepted: %v", p, res.Codes()) }
    }
}

func TestValidate_SoldierPosition(t *testing.T) {
    res := Validate([]Placement{
        gen("red", 3, 9), gen("black", 5, 0),
        {Type: "soldier", Side: "red", X: 0, Y: 7},
        {Type: "soldier", Side: "black", X: 8, Y: 2},
        {Type: "soldier", Side: "red", X: 2, Y: 6},
        {Type: "soldier", Side: "black", X: 2, Y: 3},
    })
    if !res.Has(CodeSoldierPosition, 0, 7) || !res.Has(CodeSoldierPosition, 8, 2) { t.Fatalf("got %v", res.Codes()) }
    if len(res.Errors) != 2 { t.Fatalf("want 2 items, got %v", res.Codes()) }
}

func TestValidate_CountsAndGenerals(t *testing.T) {
    pieces := []Placement{gen("red", 3, 9), gen("red", 5, 9)}
    for x := 0; x < 3; x++ {
        pieces = append(pieces, Placement{Type: "rook", Side: "black", X: x, Y: 4})
    }
    res := Validate(pieces)
    want := map[string]bool{CodeExceedCount: true, CodeGeneralCountRed: true, CodeGeneralCountBlack: true}
    for code := range want {
        if !res.Has(code, -1, -1) { t.Fatalf("missing %s in %v", code, res.Codes()) }
    }
}

func TestValidate_UnknownTypeIsPermissive(t *testing.T) {
    pieces := []Placement{gen("red", 3, 9), gen("black", 5, 0)}
    for x := 0; x < 9; x++ {
        pieces = append(pieces, Placement{Type: "dragon", Side: "red", X: x, Y: 5})
    }
    if res := Validate(pieces); !res.Valid { t.Fatalf("unknown type capped: %v", res.Codes()) }
}

func TestValidate_OutOfBoundsExcluded(t *testing.T) {
    res := Validate([]Placement{
        gen("red", 4, 9), gen("black", 3, 0),
        {Type: "rook", Side: "red", X: 9, Y: 0},
        {Type: "rook", Side: "red", X: 9, Y: 0},
        gen("black", -1, 4),
    })
    if got := res.Codes(); len(got) != 3 { t.Fatalf("want only 3 out_of_bounds items, got %v", got) }
    for _, c := range res.Codes() {
        if c != CodeOutOfBounds { t.Fatalf("unexpected %s", c) }
    }
}

func TestAssertValidEndgame(t *testing.T) {
    err := AssertValidEndgame([]Placement{gen("red", 4, 9)})
    var se *SetupError
    if !errors.As(err, &se) { t.Fatalf("want SetupError, got %v", err) }
    if len(se.Errors) == 0 { t.Fatalf("empty errors") }
    if err := AssertValidEndgame([]Placement{gen("red", 4, 9), gen("black", 3, 0)}); err != nil { t.Fatalf("valid layout: %v", err) }
}

func TestBoardFromPlacements_StandardLayout(t *testing.T) {
    b, err := BoardFromPlacements(PlacementsOf(StandardLayout()))
    if err != nil { t.Fatalf("standard layout rejected: %v", err) }
    if !b.Equal(NewStandardBoard()) { t.Fatalf("board mismatch") }
}

func TestValidationResult_JSONShape(t *testing.T) {
    res := Validate([]Placement{gen("red", 4, 9)})
    raw, err := json.Marshal(res)
    if err != nil { t.Fatalf("marshal: %v", err) }
    var got struct {
        Valid  bool `json:"valid"`
        Errors []map[string]any `json:"errors"`
    }
    if err := json.Unmarshal(raw, &got); err != nil { t.Fatalf("unmarshal: %v", err) }
    if got.Valid || len(got.Errors) != 1 { t.Fatalf("got %s", raw) }
    if _, ok := got.Errors[0]["x"]; ok { t.Fatalf("general_count item must not carry coordinates: %s", raw) }
}
