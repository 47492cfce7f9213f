package command

import (
    "encoding/json"
    "errors"
    "fmt"
    "strings"

    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

var errEmptySeed = errors.New("empty placement")

type seedDoc struct {
    Pieces []xiangqi.Placement `json:"pieces"`
    Turn   string              `json:"turn"`
}

// ParseSeed reads a custom starting position from chat text. Accepted forms are a JSON array
// of placements, a JSON object {"pieces": [...], "turn": "red"}, or a Xiangqi FEN. A trailing
// side word (홍/흑/red/black) overrides the side to move.
func ParseSeed(text string) ([]xiangqi.Placement, xiangqi.Side, error) {
    body := strings.TrimSpace(text)
    if body == "" { return nil, "", errEmptySeed }

    var override xiangqi.Side
    if i := strings.LastIndexAny(body, " \t\n"); i > 0 {
        if side, ok := sideWord(body[i+1:]); ok {
            override = side
            body = strings.TrimSpace(body[:i])
        }
    }

    pieces, turn, err := parseSeedBody(body)
    if err != nil { return nil, "", err }
    if override != "" { turn = override }
    if turn == "" { turn = xiangqi.Red }
    return pieces, turn, nil
}

func parseSeedBody(body string) ([]xiangqi.Placement, xiangqi.Side, error) {
    switch body[0] {
    case '[':
        var pieces []xiangqi.Placement
        if err := json.Unmarshal([]byte(body), &pieces); err != nil { return nil, "", fmt.Errorf("placement json: %w", err) }
        return pieces, "", nil
    case '{':
        var doc seedDoc
        if err := json.Unmarshal([]byte(body), &doc); err != nil { return nil, "", fmt.Errorf("placement json: %w", err) }
        var turn xiangqi.Side
        if doc.Turn != "" {
            side, ok := sideWord(doc.Turn)
            if !ok { return nil, "", fmt.Errorf("unknown side %q", doc.Turn) }
            turn = side
        }
        return doc.Pieces, turn, nil
    }
    b, turn, err := xiangqi.ParseFEN(body)
    if err != nil { return nil, "", err }
    return xiangqi.PlacementsOf(b.Pieces()), turn, nil
}

func sideWord(s string) (xiangqi.Side, bool) {
    switch strings.TrimSpace(s) {
    case "홍":
        return xiangqi.Red, true
    case "흑":
        return xiangqi.Black, true
    }
    side, err := xiangqi.ParseSide(s)
    if err != nil || s == "w" || s == "b" { return "", false }
    return side, true
}

// ParseOverlays flattens "standard+super_soldier, long_horse" style arguments into overlay
// names. The base set name is implicit and dropped.
func ParseOverlays(args []string) []string {
    var out []string
    seen := map[string]bool{}
    for _, a := range args {
        for _, name := range strings.FieldsFunc(a, func(r rune) bool { return r == '+' || r == ',' }) {
            name = strings.ToLower(strings.TrimSpace(name))
            if name == "" || name == "standard" || name == "표준" || seen[name] { continue }
            seen[name] = true
            out = append(out, name)
        }
    }
    return out
}
