package ensemble

import (
	"encoding/json"
	"fmt"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
)

// fieldKind tags the reduction rule for one field. It is resolved once,
// from the first non-null value a field receives, and never re-inspected
// per contribution.
type fieldKind int

const (
	kindNumber fieldKind = iota
	kindText
	kindList
	kindOther
)

func kindOf(v interface{}) fieldKind {
	switch v.(type) {
	case float64, float32, int, int64:
		return kindNumber
	case string:
		return kindText
	case []interface{}:
		return kindList
	default:
		return kindOther
	}
}

// MergeClassifications reduces classification votes to one consensus.
// The label is the plurality label; ties break to the label encountered
// first in collection order. Confidence is the arithmetic mean over ALL
// votes' confidences regardless of label: it measures ensemble agreement
// strength, not per-label confidence.
//
// An empty vote list yields the defined empty consensus (label "unknown",
// confidence 0), never an error.
func MergeClassifications(votes []models.ClassificationVote) *models.ConsensusClassification {
	if len(votes) == 0 {
		return &models.ConsensusClassification{
			Label:                 "unknown",
			Confidence:            0,
			ContributingProviders: []string{},
		}
	}

	labels := make([]string, 0, len(votes))
	contributors := make([]string, 0, len(votes))
	sum := 0.0
	for _, v := range votes {
		labels = append(labels, v.Label)
		contributors = append(contributors, v.Provider)
		sum += v.Confidence
	}

	return &models.ConsensusClassification{
		Label:                 pluralityString(labels),
		Confidence:            sum / float64(len(votes)),
		ContributingProviders: contributors,
	}
}

// MergeExtractions reduces extraction votes field by field. The merged
// key set is the union of every vote's keys. Fields are resolved
// independently of each other, so the merged record may be internally
// inconsistent when providers disagree on correlated fields (e.g.
// subtotal + tax vs total); that is accepted behavior.
func MergeExtractions(votes []models.ExtractionVote) *models.ConsensusFields {
	merged := &models.ConsensusFields{
		Fields:                map[string]interface{}{},
		ContributingProviders: []string{},
	}
	if len(votes) == 0 {
		return merged
	}
	// A lone vote is returned as-is. Running it through the per-field
	// reduction would still deduplicate its lists, which breaks
	// single-vote idempotence.
	if len(votes) == 1 {
		for k, v := range votes[0].Fields {
			merged.Fields[k] = v
		}
		merged.ContributingProviders = append(merged.ContributingProviders, votes[0].Provider)
		return merged
	}

	keys := make([]string, 0)
	seen := make(map[string]bool)
	for _, v := range votes {
		merged.ContributingProviders = append(merged.ContributingProviders, v.Provider)
		for k := range v.Fields {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	for _, key := range keys {
		values := make([]interface{}, 0, len(votes))
		for _, v := range votes {
			if value, ok := v.Fields[key]; ok && value != nil {
				values = append(values, value)
			}
		}
		merged.Fields[key] = mergeField(values)
	}
	return merged
}

// mergeField reduces the non-null contributions for one field. The rule
// is picked from the first contribution's shape.
func mergeField(values []interface{}) interface{} {
	if len(values) == 0 {
		return nil
	}

	switch kindOf(values[0]) {
	case kindNumber:
		// Non-numeric contributions for a numeric field are ignored,
		// not averaged in.
		sum, n := 0.0, 0
		for _, v := range values {
			if f, ok := asNumber(v); ok {
				sum += f
				n++
			}
		}
		return sum / float64(n)

	case kindList:
		return unionList(values)

	case kindText:
		texts := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.(string); ok {
				texts = append(texts, s)
			}
		}
		return pluralityString(texts)

	default:
		// Booleans, nested records: first non-null contribution wins.
		return values[0]
	}
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// unionList merges list contributions into one deduplicated list with
// set semantics. Non-primitive elements are deduplicated by their JSON
// serialization. First-seen order is kept for determinism; callers must
// not rely on any particular order.
func unionList(values []interface{}) []interface{} {
	out := make([]interface{}, 0)
	seen := make(map[string]bool)
	for _, v := range values {
		items, ok := v.([]interface{})
		if !ok {
			continue
		}
		for _, item := range items {
			key := elementKey(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
	}
	return out
}

func elementKey(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}

// pluralityString returns the most frequent value; ties break to the
// value encountered first. The input is collection order, so a genuine
// tie between concurrently collected votes is not reproducible across
// runs.
func pluralityString(values []string) string {
	if len(values) == 0 {
		return ""
	}
	counts := make(map[string]int, len(values))
	firstIndex := make(map[string]int, len(values))
	for i, v := range values {
		if _, ok := firstIndex[v]; !ok {
			firstIndex[v] = i
		}
		counts[v]++
	}

	best := values[0]
	for _, v := range values {
		if counts[v] > counts[best] {
			best = v
			continue
		}
		if counts[v] == counts[best] && firstIndex[v] < firstIndex[best] {
			best = v
		}
	}
	return best
}
