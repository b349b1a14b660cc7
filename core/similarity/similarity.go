// Package similarity provides the string-distance and string-similarity
// metrics used by typosquat detection. Each function is a pure, total
// function over two strings: no side effects, no panics, and a defined
// result for empty input (empty-vs-empty is maximal similarity).
//
// The metrics intentionally capture different distortion classes. Edit
// distance catches insertions and deletions, Damerau-Levenshtein adds
// adjacent transpositions, Jaro-Winkler rewards preserved prefixes, and
// n-gram overlap catches substring-level resemblance. Combined blends them
// with weights tuned for package-name typos.
package similarity

// LevenshteinDistance computes the edit distance between two strings using
// the standard dynamic-programming algorithm. The edit distance is the
// minimum number of single-character insertions, deletions, or substitutions
// required to transform string a into string b.
func LevenshteinDistance(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// Use two rows and swap them to reduce memory from O(m*n) to O(min(m,n)).
	if la < lb {
		a, b = b, a
		la, lb = lb, la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)

	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// LevenshteinSimilarity normalizes the Levenshtein distance into a [0,1]
// similarity score: 1 − distance/max(len(a), len(b)). Two empty strings are
// defined as maximally similar.
func LevenshteinSimilarity(a, b string) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

// DamerauLevenshteinDistance computes the edit distance where an adjacent
// transposition ("loadsh" → "lodash") counts as a single edit rather than
// two. This is the metric of choice for typo detection: swapping two
// neighbouring keys is the most common way a package name gets mistyped.
//
// This is the unrestricted algorithm (sentinel border plus a last-seen index
// per character), so unlike the cheaper optimal-string-alignment variant a
// transposed pair may be edited again afterwards.
func DamerauLevenshteinDistance(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// d has a sentinel row/column of "infinite" distance so the transposition
	// lookup never underflows.
	inf := la + lb
	d := make([][]int, la+2)
	for i := range d {
		d[i] = make([]int, lb+2)
	}
	d[0][0] = inf
	for i := 0; i <= la; i++ {
		d[i+1][0] = inf
		d[i+1][1] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j+1] = inf
		d[1][j+1] = j
	}

	// lastRow[c] is the last row where character c appeared in a.
	var lastRow [256]int

	for i := 1; i <= la; i++ {
		lastCol := 0
		for j := 1; j <= lb; j++ {
			i1 := lastRow[b[j-1]]
			j1 := lastCol

			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
				lastCol = j
			}

			best := min3(d[i][j]+cost, d[i+1][j]+1, d[i][j+1]+1)
			if t := d[i1][j1] + (i - i1 - 1) + 1 + (j - j1 - 1); t < best {
				best = t
			}
			d[i+1][j+1] = best
		}
		lastRow[a[i-1]] = i
	}

	return d[la+1][lb+1]
}

// DamerauLevenshteinSimilarity normalizes DamerauLevenshteinDistance the same
// way LevenshteinSimilarity does.
func DamerauLevenshteinSimilarity(a, b string) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(DamerauLevenshteinDistance(a, b))/float64(maxLen)
}

// JaroSimilarity computes the Jaro similarity between two strings: characters
// match if they are equal and within a window of ⌊max(len)/2⌋−1 positions,
// and the match and transposition ratios are combined into a [0,1] score.
// Identical strings score 1; if either string is empty the score is 0 unless
// both are empty.
func JaroSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	window := max(la, lb)/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, la)
	bMatched := make([]bool, lb)

	matches := 0
	for i := 0; i < la; i++ {
		start := max(0, i-window)
		end := min(i+window+1, lb)
		for j := start; j < end; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	// Count transpositions among matched characters.
	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions)/2)/m) / 3
}

// jaroWinklerPrefixCap bounds the common-prefix bonus to the first four
// characters, per the standard Winkler modification.
const jaroWinklerPrefixCap = 4

// JaroWinklerSimilarity boosts the Jaro score with a weighted common-prefix
// bonus. prefixScale controls the boost per shared prefix character; the
// conventional value is 0.1 (see DefaultPrefixScale). Prefix-preserving typos
// are the dominant typosquat pattern, which is why this metric carries the
// largest weight in Combined.
func JaroWinklerSimilarity(a, b string, prefixScale float64) float64 {
	jaro := JaroSimilarity(a, b)

	prefix := 0
	limit := min(jaroWinklerPrefixCap, min(len(a), len(b)))
	for prefix < limit && a[prefix] == b[prefix] {
		prefix++
	}

	return jaro + float64(prefix)*prefixScale*(1-jaro)
}

// DefaultPrefixScale is the conventional Jaro-Winkler prefix boost factor.
const DefaultPrefixScale = 0.1

// NgramSimilarity computes the Dice coefficient over the sets of character
// n-grams of a and b: 2·|A∩B| / (|A|+|B|). When either string is shorter
// than n the function degrades to an exact-match test, returning 1 for equal
// strings and 0 otherwise.
func NgramSimilarity(a, b string, n int) float64 {
	if n < 1 {
		n = 1
	}
	if len(a) < n || len(b) < n {
		if a == b {
			return 1
		}
		return 0
	}

	gramsA := ngramSet(a, n)
	gramsB := ngramSet(b, n)

	common := 0
	for g := range gramsA {
		if _, ok := gramsB[g]; ok {
			common++
		}
	}

	return 2 * float64(common) / float64(len(gramsA)+len(gramsB))
}

func ngramSet(s string, n int) map[string]struct{} {
	set := make(map[string]struct{}, len(s))
	for i := 0; i+n <= len(s); i++ {
		set[s[i:i+n]] = struct{}{}
	}
	return set
}

// Combined weights for the blended score. Transposition-aware and
// prefix-preserving metrics dominate because swaps and prefix-preserving
// typos are the most common attack shapes. Phonetic similarity is excluded:
// on short names it produces too many cross-domain collisions.
const (
	combinedWeightLevenshtein = 0.2
	combinedWeightDamerau     = 0.3
	combinedWeightJaroWinkler = 0.35
	combinedWeightBigram      = 0.15
)

// Combined fuses Levenshtein, Damerau-Levenshtein, Jaro-Winkler, and bigram
// similarity into a single [0,1] score using a fixed empirically tuned blend.
func Combined(a, b string) float64 {
	return combinedWeightLevenshtein*LevenshteinSimilarity(a, b) +
		combinedWeightDamerau*DamerauLevenshteinSimilarity(a, b) +
		combinedWeightJaroWinkler*JaroWinklerSimilarity(a, b, DefaultPrefixScale) +
		combinedWeightBigram*NgramSimilarity(a, b, 2)
}

// CouldBeSimilar is a cheap O(1) prefilter run before the expensive metrics.
// It rejects pairs whose length difference alone makes a similarity of
// minSimilarity unreachable, and requires matching first characters unless
// the length difference is at most one. Scanning a catalog of hundreds
// of targets stays cheap because only a small fraction of pairs survive this
// test and reach the dynamic-programming metrics.
func CouldBeSimilar(a, b string, minSimilarity float64) bool {
	la, lb := len(a), len(b)
	maxLen := max(la, lb)
	if maxLen == 0 {
		return true
	}

	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) > (1-minSimilarity)*float64(maxLen) {
		return false
	}

	// An empty side survives only when the length gate above let it through
	// (a non-positive minSimilarity); there is no first character to compare.
	if la == 0 || lb == 0 {
		return true
	}

	if diff > 1 && a[0] != b[0] {
		return false
	}

	return true
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
