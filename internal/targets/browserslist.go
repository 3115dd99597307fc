package targets

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// readConfigFile reads a browserslist file or a package.json.
func readConfigFile(path, env string) ([]string, error) {
	if filepath.Base(path) == "package.json" {
		queries, _, err := readPackageJSON(path, env)
		return queries, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("targets: read %s: %w", path, err)
	}
	return parseRC(data, env), nil
}

// parseRC parses browserslist rc syntax: one or more comma-separated queries
// per line, "#" comments, and "[env other]" section headers. Queries before
// the first section are the defaults, used when no section names env.
func parseRC(data []byte, env string) []string {
	sections := map[string][]string{}
	var defaults []string
	var names []string
	inSection := false

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			names = strings.Fields(line[1 : len(line)-1])
			inSection = true
			continue
		}
		queries := splitQueries(line)
		if !inSection {
			defaults = append(defaults, queries...)
			continue
		}
		for _, name := range names {
			sections[name] = append(sections[name], queries...)
		}
	}
	if q, ok := sections[env]; ok {
		return q
	}
	return defaults
}

// readPackageJSON reads the "browserslist" field of a package.json. ok is
// false when the file or the field does not exist.
func readPackageJSON(path, env string) (queries []string, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("targets: read %s: %w", path, err)
	}

	var pkg struct {
		Browserslist json.RawMessage `json:"browserslist"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, false, fmt.Errorf("targets: parse %s: %w", path, err)
	}
	if len(pkg.Browserslist) == 0 {
		return nil, false, nil
	}

	var list []string
	if err := json.Unmarshal(pkg.Browserslist, &list); err == nil {
		return list, true, nil
	}
	var single string
	if err := json.Unmarshal(pkg.Browserslist, &single); err == nil {
		return splitQueries(single), true, nil
	}
	var byEnv map[string][]string
	if err := json.Unmarshal(pkg.Browserslist, &byEnv); err != nil {
		return nil, false, fmt.Errorf("targets: %s: browserslist must be a list, string or map of lists", path)
	}
	if q, ok := byEnv[env]; ok {
		return q, true, nil
	}
	return byEnv["defaults"], true, nil
}
