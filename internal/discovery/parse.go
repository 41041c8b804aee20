package discovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

type rawField struct {
	Role        string   `json:"role"`
	Selector    string   `json:"selector"`
	Confidence  *float64 `json:"confidence"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder"`
}

type rawAnswer struct {
	Fields     []rawField `json:"fields"`
	Confidence *float64   `json:"confidence"`
}

// ParseAnswer pulls the field list out of model text. Code fences and chatter
// around the JSON object are tolerated; anything else is ErrMalformedResponse.
func ParseAnswer(text string) ([]domain.FieldCandidate, float64, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, 0, fmt.Errorf("%w: no JSON object", ErrMalformedResponse)
	}
	var a rawAnswer
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	fields := make([]domain.FieldCandidate, 0, len(a.Fields))
	seen := map[string]bool{}
	var sum float64
	for _, f := range a.Fields {
		sel := strings.TrimSpace(f.Selector)
		if sel == "" || f.Confidence == nil || seen[sel] {
			continue
		}
		seen[sel] = true
		c := clamp(*f.Confidence)
		sum += c
		fields = append(fields, domain.FieldCandidate{
			Role:        domain.ParseFieldRole(f.Role),
			Selector:    sel,
			Confidence:  c,
			Label:       strings.TrimSpace(f.Label),
			Placeholder: strings.TrimSpace(f.Placeholder),
		})
	}

	var conf float64
	switch {
	case a.Confidence != nil:
		conf = clamp(*a.Confidence)
	case len(fields) > 0:
		conf = sum / float64(len(fields))
	}
	return fields, conf, nil
}

func clamp(f float64) float64 {
	switch {
	case f != f, f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
