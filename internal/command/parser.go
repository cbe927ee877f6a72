package command

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

var tokenPattern = regexp.MustCompile(`\[ACTION:([^\]]*)\]`)

type Parser struct {
	log zerolog.Logger
}

func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log.With().Str("component", "command").Logger()}
}

// Parse uses a parser that discards diagnostics.
func Parse(text string) (string, []Action) {
	return NewParser(zerolog.Nop()).Parse(text)
}

// Parse removes every action token from text and returns the cleaned text with the
// recognised actions in left-to-right order. Unknown or malformed tokens are removed
// from the text and dropped.
func (p *Parser) Parse(text string) (string, []Action) {
	matches := tokenPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text), nil
	}

	actions := make([]Action, 0, len(matches))
	clean := text
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		body := text[m[2]:m[3]]
		clean = clean[:m[0]] + clean[m[1]:]

		a, ok := parseAction(body)
		if !ok {
			p.log.Debug().Str("token", body).Msg("Dropping unrecognised action token")
			continue
		}
		actions = append(actions, a)
	}

	// collected back to front
	for l, r := 0, len(actions)-1; l < r; l, r = l+1, r-1 {
		actions[l], actions[r] = actions[r], actions[l]
	}
	return strings.TrimSpace(clean), actions
}

func parseAction(body string) (Action, bool) {
	parts := strings.Split(body, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	kind := normaliseType(parts[0])
	params := parts[1:]

	switch kind {
	case "pose":
		name, dur, ok := nameAndDuration(params, DefaultPoseDuration)
		if !ok {
			return nil, false
		}
		return Pose{Name: name, Duration: dur}, true

	case "move":
		if len(params) != 3 && len(params) != 4 {
			return nil, false
		}
		v, ok := parseVec(params[:3])
		if !ok {
			return nil, false
		}
		dur := DefaultMoveDuration
		if len(params) == 4 {
			if dur, ok = parseDuration(params[3]); !ok {
				return nil, false
			}
		}
		return Move{Target: v, Duration: dur}, true

	case "look":
		return parseLook(params)

	case "expression":
		if len(params) != 1 || params[0] == "" {
			return nil, false
		}
		return Expression{Name: strings.ToLower(params[0])}, true

	case "complexmotion":
		name, dur, ok := nameAndDuration(params, 0)
		if !ok {
			return nil, false
		}
		return ComplexMotion{Name: name, Duration: dur}, true

	case "idle":
		if len(params) != 0 {
			return nil, false
		}
		return Idle{}, true
	}
	return nil, false
}

func normaliseType(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "-", "")
}

func nameAndDuration(params []string, def float64) (string, float64, bool) {
	if len(params) < 1 || len(params) > 2 || params[0] == "" {
		return "", 0, false
	}
	dur := def
	if len(params) == 2 {
		d, ok := parseDuration(params[1])
		if !ok {
			return "", 0, false
		}
		dur = d
	}
	return strings.ToLower(params[0]), dur, true
}

func parseLook(params []string) (Action, bool) {
	if len(params) == 0 {
		return nil, false
	}
	switch LookTarget(strings.ToLower(params[0])) {
	case LookUser:
		return Look{Target: LookUser}, len(params) == 1
	case LookForward:
		return Look{Target: LookForward}, len(params) == 1
	case LookPoint:
		if len(params) != 4 {
			return nil, false
		}
		v, ok := parseVec(params[1:])
		return Look{Target: LookPoint, Point: v}, ok
	}
	// bare coordinates
	if len(params) == 3 {
		if v, ok := parseVec(params); ok {
			return Look{Target: LookPoint, Point: v}, true
		}
	}
	return nil, false
}

func parseVec(s []string) (mgl64.Vec3, bool) {
	var v mgl64.Vec3
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(s[i], 64)
		if err != nil || !finite(f) {
			return v, false
		}
		v[i] = f
	}
	return v, true
}

func parseDuration(s string) (float64, bool) {
	d, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
	if err != nil || d <= 0 || !finite(d) {
		return 0, false
	}
	return d, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
