package description

import "github.com/kailas-cloud/suggest/internal/domain/query"

// Transform shapes a backend response into the items a source publishes.
type Transform string

// Supported transforms.
const (
	// Hits publishes the response hits as-is.
	Hits Transform = "hits"
	// Results publishes the whole response as a single item.
	Results Transform = "results"
)

// IsValid reports whether t is a known transform. Empty means Hits.
func (t Transform) IsValid() bool {
	return t == "" || t == Hits || t == Results
}

// Apply normalizes a response into a plain item list.
func (t Transform) Apply(resp *query.Response) []query.Item {
	if t == Results {
		hits := resp.Hits
		if hits == nil {
			hits = []query.Item{}
		}
		return []query.Item{{
			"collection": resp.Collection,
			"query":      resp.Text,
			"total":      resp.Total,
			"hits":       hits,
			"params":     map[string]string(resp.Params),
		}}
	}
	if resp.Hits == nil {
		return []query.Item{}
	}
	return resp.Hits
}
