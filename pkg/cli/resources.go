package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resourceSpec is a parsed --embed argument: path[@alias@[glob]].
type resourceSpec struct {
	path  string // file or directory on disk
	alias string // key prefix seen by the program; defaults to path
	glob  string // basename filter inside a directory
}

// parseResourceSpec splits the optional @alias@ suffix off an --embed
// argument. A single @ is part of the path.
//
//	"static"             -> {path:"static", alias:"static"}
//	"static/@.@"         -> {path:"static/", alias:"."}
//	"static/@web@*.css"  -> {path:"static/", alias:"web", glob:"*.css"}
func parseResourceSpec(arg string) resourceSpec {
	first := strings.IndexByte(arg, '@')
	if first < 0 {
		return resourceSpec{path: arg, alias: arg}
	}
	second := strings.IndexByte(arg[first+1:], '@')
	if second < 0 {
		return resourceSpec{path: arg, alias: arg}
	}
	second += first + 1
	return resourceSpec{path: arg[:first], alias: arg[first+1 : second], glob: arg[second+1:]}
}

// resourceKey is the key of file under base, prefixed by alias, always
// with forward slashes.
func resourceKey(alias, base, file string) string {
	rel, err := filepath.Rel(base, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	return filepath.ToSlash(filepath.Join(alias, rel))
}

// splitList splits comma separated --embed values, keeping commas inside
// braces: "a,*.{js,css}" -> ["a", "*.{js,css}"].
func splitList(arg string) []string {
	var parts []string
	depth, start := 0, 0
	flush := func(end int) {
		if p := strings.TrimSpace(arg[start:end]); p != "" {
			parts = append(parts, p)
		}
	}
	for i := 0; i < len(arg); i++ {
		switch arg[i] {
		case '{':
			depth++
		case '}':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(arg))
	return parts
}

// expandBraces expands one level of shell braces per recursion:
// "*.{js,css}" -> ["*.js", "*.css"].
func expandBraces(pattern string) []string {
	open := strings.IndexByte(pattern, '{')
	if open < 0 {
		return []string{pattern}
	}
	end := strings.IndexByte(pattern[open:], '}')
	if end < 0 {
		return []string{pattern}
	}
	end += open

	var out []string
	for _, alt := range strings.Split(pattern[open+1:end], ",") {
		out = append(out, expandBraces(pattern[:open]+alt+pattern[end+1:])...)
	}
	return out
}

// collectResources reads the files named by one --embed value into
// resources.
func collectResources(arg string, resources map[string][]byte) error {
	for _, part := range splitList(arg) {
		spec := parseResourceSpec(part)
		dir := strings.TrimRight(spec.path, "/\\")
		if dir == "" {
			dir = "."
		}
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("cannot stat %s: %w", dir, err)
		}
		if !info.IsDir() {
			if spec.glob != "" {
				return fmt.Errorf("%s is not a directory (a filter needs one)", dir)
			}
			data, err := os.ReadFile(dir)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", dir, err)
			}
			resources[filepath.ToSlash(spec.alias)] = data
			continue
		}
		if err := collectDir(dir, spec.alias, spec.glob, resources); err != nil {
			return err
		}
	}
	return nil
}

func collectDir(dir, alias, glob string, resources map[string][]byte) error {
	var patterns []string
	if glob != "" {
		patterns = expandBraces(glob)
	}
	return filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return err
		}
		if len(patterns) > 0 && !matchesAny(patterns, filepath.Base(path)) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		resources[resourceKey(alias, dir, path)] = data
		return nil
	})
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
