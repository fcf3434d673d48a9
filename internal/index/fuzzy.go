package index

import "unicode/utf8"

// autoFuzziness mirrors the "AUTO" edit-distance policy: very short terms
// must match exactly, mid-length terms tolerate one edit, longer terms two.
func autoFuzziness(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n < 3:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// editDistanceAtMost computes the Levenshtein distance between a and b,
// giving up early once the distance provably exceeds max. It returns the
// distance and whether it is <= max.
func editDistanceAtMost(a, b string, max int) (int, bool) {
	ra := []rune(a)
	rb := []rune(b)
	la, lb := len(ra), len(rb)
	if la-lb > max || lb-la > max {
		return max + 1, false
	}
	if la == 0 {
		return lb, lb <= max
	}
	if lb == 0 {
		return la, la <= max
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			d := del
			if ins < d {
				d = ins
			}
			if sub < d {
				d = sub
			}
			curr[j] = d
			if d < rowMin {
				rowMin = d
			}
		}
		if rowMin > max {
			return max + 1, false
		}
		prev, curr = curr, prev
	}
	d := prev[lb]
	return d, d <= max
}
