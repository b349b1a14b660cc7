package findings

import (
	"crypto/sha256"
	"fmt"
)

// ComputeFingerprint produces a deterministic SHA-256 hex digest from the
// combination of ruleID, the finding subject, and the message. The
// fingerprint is stable across runs as long as the inputs are identical,
// making it suitable for deduplication and change tracking between audits.
func ComputeFingerprint(ruleID string, subj Subject, message string) string {
	h := sha256.New()
	// Components are separated by a null byte to avoid ambiguous
	// concatenations (e.g. ruleID="ab", pkg="c" vs ruleID="a", pkg="bc").
	_, _ = fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s",
		ruleID, subj.Ecosystem, subj.Package, subj.Manifest, message)
	return fmt.Sprintf("%x", h.Sum(nil))
}
