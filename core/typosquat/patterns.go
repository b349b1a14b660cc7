// Package typosquat implements name-confusion detection for package names:
// structural manipulation patterns, an allowlist of legitimate naming
// conventions, and an orchestrator that scores candidate names against a
// catalog of popular targets and classifies the risk of each match.
package typosquat

import (
	"fmt"
	"strings"
)

// Pattern identifies a specific name-manipulation technique. The set is
// closed: every detector maps to exactly one of these values.
type Pattern string

// Recognised manipulation techniques.
const (
	PatternCharacterSwap      Pattern = "character-swap"
	PatternCharacterDuplicate Pattern = "character-duplicate"
	PatternCharacterOmission  Pattern = "character-omission"
	PatternCharacterInsertion Pattern = "character-insertion"
	PatternHomoglyph          Pattern = "homoglyph"
	PatternHyphenManipulation Pattern = "hyphen-manipulation"
	PatternScopeConfusion     Pattern = "scope-confusion"
	PatternVersionSuffix      Pattern = "version-suffix"
	PatternCommonTypo         Pattern = "common-typo"
)

// PatternMatch reports that a candidate/target pair exhibits a specific
// manipulation technique. Confidence reflects how rarely the exact structural
// pattern occurs by accident rather than by design: homoglyph substitution
// and adjacent swaps are essentially never accidental, suffix padding
// sometimes is.
type PatternMatch struct {
	Pattern     Pattern `json:"pattern"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// detectors is the fixed ordered list of structural tests. Each one is an
// exact test, not a fuzzy score, so a pair may legitimately match several
// patterns (for example hyphen-manipulation and scope-confusion).
var detectors = []func(candidate, target string) *PatternMatch{
	checkSwap,
	checkDuplicate,
	checkOmission,
	checkInsertion,
	checkHomoglyph,
	checkHyphenManipulation,
	checkScopeConfusion,
	checkVersionSuffix,
	checkKeyboardTypo,
}

// DetectPatterns runs every structural detector against the pair and collects
// all matches. Identical strings never match anything.
func DetectPatterns(candidate, target string) []PatternMatch {
	if candidate == target {
		return nil
	}

	var matches []PatternMatch
	for _, detect := range detectors {
		if m := detect(candidate, target); m != nil {
			matches = append(matches, *m)
		}
	}
	return matches
}

// checkSwap detects a single adjacent transposition: exactly two mismatched
// positions, adjacent, with cross-equal values.
func checkSwap(candidate, target string) *PatternMatch {
	if len(candidate) != len(target) {
		return nil
	}

	first := -1
	second := -1
	for i := 0; i < len(candidate); i++ {
		if candidate[i] == target[i] {
			continue
		}
		switch {
		case first == -1:
			first = i
		case second == -1:
			second = i
		default:
			return nil
		}
	}

	if first == -1 || second != first+1 {
		return nil
	}
	if candidate[first] != target[second] || candidate[second] != target[first] {
		return nil
	}

	return &PatternMatch{
		Pattern:     PatternCharacterSwap,
		Description: fmt.Sprintf("adjacent characters %q and %q swapped", target[first], target[second]),
		Confidence:  0.9,
	}
}

// checkDuplicate detects a single doubled character: the candidate is the
// target with one character repeated immediately after an existing
// occurrence ("expresss" for "express").
func checkDuplicate(candidate, target string) *PatternMatch {
	if len(candidate) != len(target)+1 {
		return nil
	}
	i := duplicatedAt(target, candidate)
	if i == -1 {
		return nil
	}
	return &PatternMatch{
		Pattern:     PatternCharacterDuplicate,
		Description: fmt.Sprintf("character %q duplicated", candidate[i]),
		Confidence:  0.85,
	}
}

// duplicatedAt returns the index in longer of a character that, when removed,
// yields shorter, but only if the character repeats its left neighbour.
// Returns -1 if longer is not shorter with one doubled character.
func duplicatedAt(shorter, longer string) int {
	i := spliceIndex(shorter, longer)
	if i == -1 {
		return -1
	}
	if i > 0 && longer[i] == longer[i-1] {
		return i
	}
	if i+1 < len(longer) && longer[i] == longer[i+1] {
		return i
	}
	return -1
}

// checkOmission detects a single missing character: the candidate is the
// target with exactly one character removed ("axos" for "axios").
func checkOmission(candidate, target string) *PatternMatch {
	if len(candidate)+1 != len(target) {
		return nil
	}
	i := spliceIndex(candidate, target)
	if i == -1 {
		return nil
	}
	return &PatternMatch{
		Pattern:     PatternCharacterOmission,
		Description: fmt.Sprintf("character %q omitted", target[i]),
		Confidence:  0.75,
	}
}

// checkInsertion detects a single extra character spliced into the candidate
// ("lodiash" for "lodash"). Doubled characters are reported as
// character-duplicate instead.
func checkInsertion(candidate, target string) *PatternMatch {
	if len(candidate) != len(target)+1 {
		return nil
	}
	i := spliceIndex(target, candidate)
	if i == -1 {
		return nil
	}
	if (i > 0 && candidate[i] == candidate[i-1]) || (i+1 < len(candidate) && candidate[i] == candidate[i+1]) {
		return nil // a doubled character is the duplicate pattern
	}
	return &PatternMatch{
		Pattern:     PatternCharacterInsertion,
		Description: fmt.Sprintf("extra character %q inserted", candidate[i]),
		Confidence:  0.75,
	}
}

// spliceIndex returns the index of the single character that must be removed
// from longer to obtain shorter, or -1 if no single splice works. longer must
// be exactly one character longer than shorter.
func spliceIndex(shorter, longer string) int {
	for i := 0; i <= len(shorter); i++ {
		if i < len(shorter) && shorter[i] == longer[i] {
			continue
		}
		if shorter[:i] == longer[:i] && shorter[i:] == longer[i+1:] {
			return i
		}
		return -1
	}
	return -1
}

// homoglyphGroups are sets of characters that render near-identically in
// common fonts. Substituting within a group is essentially never accidental.
var homoglyphGroups = []string{
	"l1I|",
	"o0O",
	"s5$",
	"g9q",
	"e3",
	"a4",
	"b8",
	"z2",
}

// homoglyphOf maps each character to the group it belongs to.
var homoglyphOf = func() map[byte]int {
	m := make(map[byte]int)
	for g, group := range homoglyphGroups {
		for i := 0; i < len(group); i++ {
			m[group[i]] = g
		}
	}
	return m
}()

// checkHomoglyph detects visual-confusion substitutions: equal length, every
// mismatched position substitutes within a homoglyph group, and the total
// number of substitutions is 1 or 2. Three or more is treated as unrelated
// noise rather than a glyph trick.
func checkHomoglyph(candidate, target string) *PatternMatch {
	if len(candidate) != len(target) {
		return nil
	}

	subs := 0
	for i := 0; i < len(candidate); i++ {
		if candidate[i] == target[i] {
			continue
		}
		gc, okc := homoglyphOf[candidate[i]]
		gt, okt := homoglyphOf[target[i]]
		if !okc || !okt || gc != gt {
			return nil
		}
		subs++
		if subs > 2 {
			return nil
		}
	}
	if subs == 0 {
		return nil
	}

	return &PatternMatch{
		Pattern:     PatternHomoglyph,
		Description: fmt.Sprintf("%d visually confusable character substitution(s)", subs),
		Confidence:  0.95,
	}
}

// checkHyphenManipulation detects separator games: stripping every hyphen and
// underscore from both names yields identical text while the originals
// differ ("cross_env" for "cross-env", "nodefetch" for "node-fetch").
func checkHyphenManipulation(candidate, target string) *PatternMatch {
	strip := func(s string) string {
		s = strings.ReplaceAll(s, "-", "")
		return strings.ReplaceAll(s, "_", "")
	}
	if strip(candidate) != strip(target) {
		return nil
	}
	return &PatternMatch{
		Pattern:     PatternHyphenManipulation,
		Description: "differs only in hyphen/underscore placement",
		Confidence:  0.8,
	}
}

// checkScopeConfusion detects de-scoped imitations of a scoped target:
// for target "@scope/pkg" the candidate matches "scope-pkg", "scope_pkg",
// "scopepkg", or the bare "pkg".
func checkScopeConfusion(candidate, target string) *PatternMatch {
	if !strings.HasPrefix(target, "@") {
		return nil
	}
	slash := strings.Index(target, "/")
	if slash == -1 {
		return nil
	}

	scope := target[1:slash]
	pkg := target[slash+1:]

	variants := []string{
		scope + "-" + pkg,
		scope + "_" + pkg,
		scope + pkg,
		pkg,
	}
	for _, v := range variants {
		if candidate == v {
			return &PatternMatch{
				Pattern:     PatternScopeConfusion,
				Description: fmt.Sprintf("unscoped imitation of scoped package %q", target),
				Confidence:  0.85,
			}
		}
	}
	return nil
}

// decoySuffixes are suffixes attackers append to a popular name to pass off a
// clone as the sequel or official port of the original.
var decoySuffixes = []string{"2", "3", "js", "-js", ".js", "next", "-next"}

// checkVersionSuffix detects a known decoy suffix appended to the exact
// target name ("lodash2", "expressjs").
func checkVersionSuffix(candidate, target string) *PatternMatch {
	for _, suffix := range decoySuffixes {
		if candidate == target+suffix {
			return &PatternMatch{
				Pattern:     PatternVersionSuffix,
				Description: fmt.Sprintf("decoy suffix %q appended to %q", suffix, target),
				Confidence:  0.8,
			}
		}
	}
	return nil
}

// qwertyNeighbors maps each key to its physically adjacent keys on a QWERTY
// layout. Only letters and digits are mapped; everything else has no
// neighbours.
var qwertyNeighbors = map[byte]string{
	'1': "2q", '2': "13w", '3': "24e", '4': "35r", '5': "46t",
	'6': "57y", '7': "68u", '8': "79i", '9': "80o", '0': "9p",
	'q': "12wa", 'w': "23qes", 'e': "34wrd", 'r': "45etf", 't': "56ryg",
	'y': "67tuh", 'u': "78yij", 'i': "89uok", 'o': "90ipl", 'p': "0ol",
	'a': "qwsz", 's': "weadzx", 'd': "ersfxc", 'f': "rtdgcv", 'g': "tyfhvb",
	'h': "yugjbn", 'j': "uihknm", 'k': "iojlm", 'l': "opk",
	'z': "asx", 'x': "sdzc", 'c': "dfxv", 'v': "fgcb", 'b': "ghvn",
	'n': "hjbm", 'm': "jkn",
}

// checkKeyboardTypo detects a single fat-finger substitution: equal length,
// exactly one mismatched position, and the candidate's character there is a
// QWERTY neighbour of the target's.
func checkKeyboardTypo(candidate, target string) *PatternMatch {
	if len(candidate) != len(target) {
		return nil
	}

	mismatch := -1
	for i := 0; i < len(candidate); i++ {
		if candidate[i] == target[i] {
			continue
		}
		if mismatch != -1 {
			return nil
		}
		mismatch = i
	}
	if mismatch == -1 {
		return nil
	}

	neighbors, ok := qwertyNeighbors[target[mismatch]]
	if !ok || !strings.ContainsRune(neighbors, rune(candidate[mismatch])) {
		return nil
	}

	return &PatternMatch{
		Pattern:     PatternCommonTypo,
		Description: fmt.Sprintf("%q is adjacent to %q on a QWERTY keyboard", candidate[mismatch], target[mismatch]),
		Confidence:  0.7,
	}
}
