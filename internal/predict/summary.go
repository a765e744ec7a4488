package predict

import "sort"

// ClassCount is the number of accepted records assigned to one class.
type ClassCount struct {
	Name  string
	Count int
}

// CountClasses tallies Class.Name over accepted results.
func CountClasses(results []Result, into map[string]int) map[string]int {
	if into == nil {
		into = map[string]int{}
	}
	for _, r := range results {
		if r.Class != nil {
			into[r.Class.Name]++
		}
	}
	return into
}

// SortedCounts orders counts by descending count, then by name.
func SortedCounts(counts map[string]int) []ClassCount {
	out := make([]ClassCount, 0, len(counts))
	for n, c := range counts {
		out = append(out, ClassCount{Name: n, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
