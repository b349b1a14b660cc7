package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// packageLock is the minimal structure needed to read npm package-lock.json
// v2/v3. The "packages" map is keyed by install path; the root package uses
// the empty string as its key.
type packageLock struct {
	Packages map[string]struct {
		Version string `json:"version"`
	} `json:"packages"`
}

// parsePackageLock extracts dependencies from an npm package-lock.json v2/v3
// file. The root entry (key "") is skipped because it represents the project
// itself rather than a dependency.
func parsePackageLock(content []byte) ([]Package, error) {
	var lock packageLock
	if err := json.Unmarshal(content, &lock); err != nil {
		return nil, fmt.Errorf("decoding package-lock.json: %w", err)
	}

	var pkgs []Package
	for path, info := range lock.Packages {
		if path == "" {
			continue
		}
		// Keys are install paths like "node_modules/express" or the nested
		// "node_modules/express/node_modules/debug". The package name is
		// whatever follows the last node_modules/ segment, scope included.
		name := npmNameFromPath(path)
		if name == "" || info.Version == "" {
			continue
		}
		pkgs = append(pkgs, Package{
			Name:      name,
			Version:   info.Version,
			Ecosystem: EcosystemNpm,
		})
	}
	return pkgs, nil
}

func npmNameFromPath(path string) string {
	const prefix = "node_modules/"
	idx := strings.LastIndex(path, prefix)
	if idx == -1 {
		return ""
	}
	return path[idx+len(prefix):]
}

// parseRequirements extracts packages from a Python requirements.txt file.
// It reads the version from ==, >=, <=, ~=, and != specifiers, taking the
// first version of a compound specifier. Bare names without any specifier
// are still reported, with an empty version, because an unpinned typosquat
// is at least as dangerous as a pinned one.
func parseRequirements(content []byte) ([]Package, error) {
	// Ordered longest-first so two-character operators match before "=".
	operators := []string{"==", ">=", "<=", "~=", "!="}

	var pkgs []Package
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}

		// Strip inline comments and environment markers.
		if idx := strings.Index(line, "#"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}
		if idx := strings.Index(line, ";"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}

		// Strip extras: package[extra]==1.0.
		if idx := strings.Index(line, "["); idx != -1 {
			if bracket := strings.Index(line, "]"); bracket > idx {
				line = line[:idx] + line[bracket+1:]
			}
		}
		if line == "" {
			continue
		}

		name := line
		version := ""
		for _, op := range operators {
			if idx := strings.Index(line, op); idx != -1 {
				name = strings.TrimSpace(line[:idx])
				version = strings.TrimSpace(line[idx+len(op):])
				if comma := strings.Index(version, ","); comma != -1 {
					version = strings.TrimSpace(version[:comma])
				}
				break
			}
		}
		if name == "" || strings.ContainsAny(name, "<>=!~ ") {
			continue
		}

		pkgs = append(pkgs, Package{
			Name:      name,
			Version:   version,
			Ecosystem: EcosystemPyPI,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning requirements.txt: %w", err)
	}
	return pkgs, nil
}

// parseGoSum extracts unique module/version pairs from go.sum content.
//
// Each line has the format:
//
//	module version hash
//
// A module may appear twice, once for the module source and once for its
// go.mod file (with a "/go.mod" suffix on the version); the suffix is
// stripped and the pair deduplicated.
func parseGoSum(content []byte) ([]Package, error) {
	type key struct{ mod, ver string }
	seen := make(map[key]struct{})
	var pkgs []Package

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		mod := fields[0]
		ver := strings.TrimSuffix(fields[1], "/go.mod")

		k := key{mod, ver}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		pkgs = append(pkgs, Package{
			Name:      mod,
			Version:   ver,
			Ecosystem: EcosystemGo,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning go.sum: %w", err)
	}
	return pkgs, nil
}

// parseGemfileLock extracts gem names and versions from a Gemfile.lock.
//
// The relevant section looks like:
//
//	GEM
//	  remote: https://rubygems.org/
//	  specs:
//	    actioncable (7.0.4)
//	    actionmailer (7.0.4)
//	      actionpack (= 7.0.4)
//
// Direct entries are indented with exactly 4 spaces; 6-space lines are
// sub-dependency constraints and are skipped.
func parseGemfileLock(content []byte) ([]Package, error) {
	var pkgs []Package
	inGEM := false
	inSpecs := false

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "GEM" {
			inGEM = true
			inSpecs = false
			continue
		}
		// A new top-level section resets the GEM context.
		if len(line) > 0 && line[0] != ' ' && trimmed != "" {
			inGEM = false
			inSpecs = false
			continue
		}
		if inGEM && trimmed == "specs:" {
			inSpecs = true
			continue
		}
		if !inGEM || !inSpecs {
			continue
		}
		if !strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "      ") {
			continue
		}

		entry := strings.TrimSpace(line)
		parenOpen := strings.Index(entry, "(")
		parenClose := strings.Index(entry, ")")
		if parenOpen == -1 || parenClose <= parenOpen {
			continue
		}

		name := strings.TrimSpace(entry[:parenOpen])
		version := strings.TrimSpace(entry[parenOpen+1 : parenClose])
		if name == "" || version == "" {
			continue
		}

		pkgs = append(pkgs, Package{
			Name:      name,
			Version:   version,
			Ecosystem: EcosystemRubyGems,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning Gemfile.lock: %w", err)
	}
	return pkgs, nil
}

// parseCargoLock extracts crates from a Cargo.lock file. Entries are TOML
// tables of the form:
//
//	[[package]]
//	name = "serde"
//	version = "1.0.196"
//
// Only the name and version keys are read; the full TOML grammar is not
// needed for the fields Cargo emits here.
func parseCargoLock(content []byte) ([]Package, error) {
	var pkgs []Package
	var name, version string
	inPackage := false

	flush := func() {
		if inPackage && name != "" && version != "" {
			pkgs = append(pkgs, Package{
				Name:      name,
				Version:   version,
				Ecosystem: EcosystemCrates,
			})
		}
		name, version = "", ""
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "[[package]]":
			flush()
			inPackage = true
		case strings.HasPrefix(line, "["):
			flush()
			inPackage = false
		case inPackage && strings.HasPrefix(line, "name = "):
			name = strings.Trim(strings.TrimPrefix(line, "name = "), `"`)
		case inPackage && strings.HasPrefix(line, "version = "):
			version = strings.Trim(strings.TrimPrefix(line, "version = "), `"`)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning Cargo.lock: %w", err)
	}
	return pkgs, nil
}
