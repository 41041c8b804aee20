package discovery

import "fmt"

const systemPrompt = `You locate the fields of a job-posting form in HTML.
Answer with one JSON object and nothing else:
{"confidence": <0..1 overall>, "fields": [{"role": "title|description|location|company|email|salary|submit|other", "selector": "<CSS selector>", "confidence": <0..1>, "label": "<visible label>", "placeholder": "<placeholder>"}]}
Selectors must match exactly one element in the given HTML. Prefer #id, then [name=...].
Include the submit button. Lower the confidence when unsure; never invent elements.`

func userPrompt(req Request) string {
	return fmt.Sprintf("Board: %s\nURL: %s\n\nHTML:\n%s", req.BoardName, req.URL, req.Excerpt)
}

// tokenCost prices usage at USD per million tokens.
func tokenCost(in, out int, inPrice, outPrice float64) float64 {
	return float64(in)*inPrice/1e6 + float64(out)*outPrice/1e6
}
