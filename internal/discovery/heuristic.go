package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

// Heuristic matches labels, names and placeholders against keyword lists.
// It costs nothing and serves as the fallback when hosted models fail.
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

var roleKeywords = []struct {
	role domain.FieldRole
	keys []string
}{
	// order matters: "job description" must not be read as title
	{domain.RoleDescription, []string{"description", "details", "responsibilities", "summary", "about the role"}},
	{domain.RoleEmail, []string{"email", "e-mail", "contact"}},
	{domain.RoleSalary, []string{"salary", "compensation", "pay", "wage"}},
	{domain.RoleCompany, []string{"company", "employer", "organization", "organisation"}},
	{domain.RoleLocation, []string{"location", "city", "address", "where"}},
	{domain.RoleTitle, []string{"title", "position", "role", "job name", "headline"}},
}

// required roles drive the overall confidence
var requiredRoles = []domain.FieldRole{domain.RoleTitle, domain.RoleDescription, domain.RoleSubmit}

func (Heuristic) Discover(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(req.Excerpt))
	if err != nil {
		return Result{}, fmt.Errorf("heuristic parse: %w", err)
	}

	labels := map[string]string{}
	doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("for")
		labels[id] = strings.TrimSpace(s.Text())
	})

	best := map[domain.FieldRole]domain.FieldCandidate{}
	consider := func(c domain.FieldCandidate) {
		if cur, ok := best[c.Role]; !ok || c.Confidence > cur.Confidence {
			best[c.Role] = c
		}
	}

	doc.Find("input, textarea, select, [contenteditable='true']").Each(func(_ int, s *goquery.Selection) {
		typ := strings.ToLower(s.AttrOr("type", "text"))
		switch typ {
		case "hidden", "checkbox", "radio", "file", "password", "button", "reset", "image":
			return
		case "submit":
			if sel := selectorFor(s); sel != "" {
				consider(domain.FieldCandidate{Role: domain.RoleSubmit, Selector: sel, Confidence: 0.9, Label: s.AttrOr("value", "")})
			}
			return
		}
		sel := selectorFor(s)
		if sel == "" {
			return
		}
		id := s.AttrOr("id", "")
		label := labels[id]
		if label == "" {
			label = s.AttrOr("aria-label", "")
		}
		placeholder := s.AttrOr("placeholder", "")
		name := s.AttrOr("name", "") + " " + id

		role, conf := classify(label, placeholder, name)
		if role == "" {
			return
		}
		if typ == "email" && role != domain.RoleEmail {
			role, conf = domain.RoleEmail, 0.85
		}
		if goquery.NodeName(s) == "textarea" && role == domain.RoleDescription {
			conf = min(1, conf+0.05)
		}
		consider(domain.FieldCandidate{Role: role, Selector: sel, Confidence: conf, Label: label, Placeholder: placeholder})
	})

	doc.Find("button").Each(func(_ int, s *goquery.Selection) {
		typ := strings.ToLower(s.AttrOr("type", "submit"))
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		conf := 0.0
		switch {
		case typ == "submit" && containsAny(text, "post", "publish", "submit"):
			conf = 0.9
		case typ == "submit":
			conf = 0.75
		case containsAny(text, "post job", "publish", "submit"):
			conf = 0.6
		}
		if conf == 0 {
			return
		}
		if sel := selectorFor(s); sel != "" {
			consider(domain.FieldCandidate{Role: domain.RoleSubmit, Selector: sel, Confidence: conf, Label: strings.TrimSpace(s.Text())})
		}
	})

	var (
		fields []domain.FieldCandidate
		sum    float64
	)
	for _, rk := range roleKeywords {
		if c, ok := best[rk.role]; ok {
			fields = append(fields, c)
		}
	}
	if c, ok := best[domain.RoleSubmit]; ok {
		fields = append(fields, c)
	}
	for _, r := range requiredRoles {
		sum += best[r].Confidence
	}
	return Result{Fields: fields, Confidence: sum / float64(len(requiredRoles))}, nil
}

func classify(label, placeholder, name string) (domain.FieldRole, float64) {
	sources := []struct {
		text string
		conf float64
	}{
		{label, 0.9},
		{placeholder, 0.8},
		{name, 0.7},
	}
	for _, src := range sources {
		t := strings.ToLower(src.text)
		if strings.TrimSpace(t) == "" {
			continue
		}
		for _, rk := range roleKeywords {
			if containsAny(t, rk.keys...) {
				return rk.role, src.conf
			}
		}
	}
	return "", 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// selectorFor prefers #id, then tag[name=...], then tag[type=...] for buttons.
func selectorFor(s *goquery.Selection) string {
	if id := s.AttrOr("id", ""); id != "" && !strings.ContainsAny(id, " .:#[]") {
		return "#" + id
	}
	tag := goquery.NodeName(s)
	if name := s.AttrOr("name", ""); name != "" {
		return fmt.Sprintf("%s[name=%q]", tag, name)
	}
	if typ, ok := s.Attr("type"); ok && (tag == "button" || typ == "submit") {
		return fmt.Sprintf("%s[type=%q]", tag, typ)
	}
	return ""
}
