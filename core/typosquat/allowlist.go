package typosquat

import "strings"

// The allowlist suppresses legitimately similar names before any scoring
// happens. With a catalog of hundreds of popular targets, naming conventions
// alone (scoped re-publications, loader families, -js ports) would otherwise
// drown real detections in false positives.

// legitimateSuffixes are suffix variants with an established, legitimate
// publishing convention: "-es" module builds, "-js" ports, "-cli" frontends.
var legitimateSuffixes = []string{"-es", "-js", "-cli"}

// toolingSuffixes are build-tool integration families: a package named
// "<target>-loader" or "<target>-plugin" is almost always a real webpack or
// build-tool integration for the target, not an imitation of it.
var toolingSuffixes = []string{"-loader", "-plugin", "-webpack-plugin"}

// pluginPrefixes are framework plugin naming conventions where
// "<prefix><target>" is the documented way to publish an integration.
var pluginPrefixes = []string{
	"eslint-plugin-",
	"babel-plugin-",
	"rollup-plugin-",
	"vite-plugin-",
	"grunt-",
	"gulp-",
	"vue-",
	"react-",
}

// isLegitimateVariant reports whether candidate relates to target through a
// recognised legitimate naming convention rather than imitation.
func (d *Detector) isLegitimateVariant(candidate, target string) bool {
	// A scoped package whose bare name matches the target lives in a
	// registry-verified namespace: "@types/lodash" is not squatting "lodash".
	if strings.HasPrefix(candidate, "@") {
		if slash := strings.Index(candidate, "/"); slash != -1 && candidate[slash+1:] == target {
			return true
		}
	}

	for _, suffix := range legitimateSuffixes {
		if candidate == target+suffix {
			return true
		}
	}
	for _, suffix := range d.extraSuffixes {
		if candidate == target+suffix {
			return true
		}
	}

	for _, suffix := range toolingSuffixes {
		if candidate == target+suffix {
			return true
		}
		// A candidate embedding the target before a tooling suffix
		// ("html-webpack-plugin" vs "webpack") names an integration for the
		// target, following the same convention.
		if strings.HasSuffix(candidate, "-"+target+suffix) {
			return true
		}
		// Two members of the same tooling family ("ts-loader" vs
		// "babel-loader") resemble each other structurally but are siblings,
		// not imitations.
		if strings.HasSuffix(candidate, suffix) && strings.HasSuffix(target, suffix) {
			return true
		}
	}

	for _, prefix := range pluginPrefixes {
		if candidate == prefix+target {
			return true
		}
	}

	return false
}
