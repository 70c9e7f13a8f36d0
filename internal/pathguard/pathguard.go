// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package pathguard canonicalizes filesystem paths and decides whether a
// path (or a path-looking token pulled out of a shell command line) is
// contained within a set of allowed roots.
package pathguard

import (
	"os"
	"path/filepath"
	"strings"
)

// Canonicalize expands a leading "~" to the user's home directory and
// resolves the result to an absolute, symlink-free path. It does not
// require the path to exist: filepath.EvalSymlinks is applied to the
// longest existing prefix so that a not-yet-created file under an existing
// directory still canonicalizes sensibly.
func Canonicalize(path string) (string, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}

	return resolveSymlinksOfExistingPrefix(abs)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// resolveSymlinksOfExistingPrefix walks up from abs until it finds a path
// component that exists, resolves symlinks on that prefix, and rejoins the
// remaining (possibly not-yet-created) suffix.
func resolveSymlinksOfExistingPrefix(abs string) (string, error) {
	suffix := []string{}
	cur := abs
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(append([]string{resolved}, suffix...)...), nil
		} else if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached the root without finding an existing component.
			return abs, nil
		}
		suffix = append([]string{filepath.Base(cur)}, suffix...)
		cur = parent
	}
}

// Contains reports whether the canonical path c lies inside at least one of
// the canonical roots, using parsed path-component comparison rather than
// string-prefix matching.
func Contains(roots []string, c string) bool {
	for _, root := range roots {
		if isWithin(root, c) {
			return true
		}
	}
	return false
}

func isWithin(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	// A relative path that escapes root starts with ".." or is itself "..".
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// IsPathLike reports whether a token looks like a path argument: it is
// ".", "..", "~", or starts with "/", "./", "../", "~", or otherwise
// contains a "/".
func IsPathLike(token string) bool {
	switch token {
	case ".", "..", "~":
		return true
	}
	if strings.HasPrefix(token, "/") || strings.HasPrefix(token, "./") ||
		strings.HasPrefix(token, "../") || strings.HasPrefix(token, "~") {
		return true
	}
	return strings.Contains(token, "/")
}

// findPathStart returns the first index within token that begins a
// path-like substring ("/", "~", "./", "../"), or -1 if none is found.
func findPathStart(token string) int {
	for i := range token {
		if token[i] == '/' || token[i] == '~' {
			return i
		}
		if i+2 <= len(token) && token[i:i+2] == "./" {
			return i
		}
		if i+3 <= len(token) && token[i:i+3] == "../" {
			return i
		}
	}
	return -1
}

// ExtractPathArgs scans tokenized shell-command arguments and returns the
// subset that look like path arguments, per spec.md §4.1:
//
//   - "key=value": value is extracted if it looks path-like.
//   - a long option ("--name"): ignored unless of the form "--name=/path"
//     (handled by the key=value case above, since "=" is checked first).
//   - a short option ("-f/path"): the first interior path-like substring
//     is extracted.
//   - any other path-like token is extracted as-is.
func ExtractPathArgs(args []string) []string {
	var paths []string

	for _, arg := range args {
		if arg == "" {
			continue
		}

		if idx := strings.IndexByte(arg, '='); idx >= 0 {
			value := arg[idx+1:]
			if IsPathLike(value) {
				paths = append(paths, value)
				continue
			}
		}

		if strings.HasPrefix(arg, "--") {
			continue
		}

		if strings.HasPrefix(arg, "-") {
			if idx := findPathStart(arg); idx >= 0 {
				paths = append(paths, arg[idx:])
			}
			continue
		}

		if IsPathLike(arg) {
			paths = append(paths, arg)
		}
	}

	return paths
}

// ResolveArg resolves a (possibly relative, possibly "~"-prefixed) path
// argument against cwd.
func ResolveArg(value, cwd string) (string, error) {
	expanded, err := expandHome(value)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return Canonicalize(expanded)
	}
	return Canonicalize(filepath.Join(cwd, expanded))
}
