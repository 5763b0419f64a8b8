package agents

import (
	"hash/fnv"
	"strings"
)

// queryHash folds a query into a small stable integer. Agents derive
// their mock figures from it so repeated runs of the same query agree.
func queryHash(query string) int {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return int(h.Sum32() % 10000)
}

func containsAny(query string, words ...string) bool {
	q := strings.ToLower(query)
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// inferTherapyArea guesses a therapy area from query keywords.
func inferTherapyArea(query string) string {
	switch {
	case containsAny(query, "cancer", "tumor", "carcinoma", "oncology", "leukemia"):
		return "Oncology"
	case containsAny(query, "diabetes", "insulin", "blood sugar"):
		return "Diabetes/Endocrinology"
	case containsAny(query, "pain", "analgesic", "headache"):
		return "Pain Management"
	case containsAny(query, "heart", "cardiovascular", "cholesterol"):
		return "Cardiovascular"
	case containsAny(query, "virus", "viral", "infection"):
		return "Antiviral/Infectious Diseases"
	case containsAny(query, "depression", "anxiety", "mental"):
		return "Psychiatry"
	case containsAny(query, "arthritis", "joint", "rheumatoid"):
		return "Rheumatology"
	default:
		return "General Medicine"
	}
}

// estimateMarketSize returns an estimated market size in USD billions.
func estimateMarketSize(query string) float64 {
	n := len(query)
	switch {
	case containsAny(query, "cancer", "tumor", "oncology"):
		return 15.0 + float64(n%10)
	case containsAny(query, "diabetes", "insulin"):
		return 25.0 + float64(n%5)
	case containsAny(query, "pain", "analgesic"):
		return 5.0 + float64(n%3)
	case containsAny(query, "cardiovascular", "heart"):
		return 18.0 + float64(n%4)
	case containsAny(query, "antiviral", "virus"):
		return 2.0 + float64(n%2)
	default:
		return 1.0 + float64(n%5)
	}
}

// estimateGrowthRate returns an estimated annual growth rate percent.
func estimateGrowthRate(query string) float64 {
	n := len(query)
	switch {
	case containsAny(query, "new", "novel", "innovative"):
		return 12.0 + float64(n%8)
	case containsAny(query, "generic"):
		return 2.0 + float64(n%3)
	default:
		return 5.0 + float64(n%10)
	}
}

// molecularDescriptors derives stable mock descriptors for a compound
// name. Real deployments would compute these from structure data.
func molecularDescriptors(query string) map[string]float64 {
	h := queryHash(query)
	return map[string]float64{
		"molecular_weight": float64(200 + h%300),
		"logp":             float64(-1 + h%7),
		"hbd":              float64(h % 8),
		"hba":              float64(2 + h%10),
		"tpsa":             float64(40 + h%120),
	}
}

// truncate shortens s to at most n runes, appending an ellipsis when
// anything was cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
