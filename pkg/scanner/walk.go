package scanner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// MaxFileSize is the largest file a scanner reads.
const MaxFileSize = 1 << 20

// Directories never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	".next":        true,
	".terraform":   true,
	".warden":      true,
}

// SkipDir reports whether a directory with the given base name is never
// scanned.
func SkipDir(name string) bool {
	return skipDirs[name]
}

// Path fragments that mark test, fixture and example files.
// Leading slashes anchor on a path segment; paths are matched with a "/" prefix.
var testPathIndicators = []string{
	"_test.go",
	".test.js", ".test.ts", ".test.jsx", ".test.tsx",
	".spec.js", ".spec.ts", ".spec.jsx", ".spec.tsx",
	"_test.py", "_test.rb",
	"/test_",
	"/__tests__/",
	"/__mocks__/",
	"/testdata/",
	"/fixtures/",
	"/tests/",
	"/test/",
	".example",
	".sample",
}

// File is one regular file found under the scan root.
type File struct {
	// Rel is the slash-separated path relative to the scan root.
	Rel string
	// Abs is the path used to open the file.
	Abs  string
	Size int64
}

// Walk calls fn for every regular file under root that is small enough to
// scan, skipping vendored and VCS directories. It returns the number of
// files visited.
func Walk(ctx context.Context, root string, fn func(File) error) (int, error) {
	info, err := os.Stat(root)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", root)
	}

	count := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil || fi.Size() > MaxFileSize {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		count++
		return fn(File{Rel: filepath.ToSlash(rel), Abs: path, Size: fi.Size()})
	})
	if err != nil {
		return count, err
	}
	return count, nil
}

// IsTestPath reports whether a relative path belongs to a test, fixture or
// example file. Findings from such files are flagged and left out of scoring.
func IsTestPath(rel string) bool {
	lower := "/" + strings.ToLower(filepath.ToSlash(rel))
	for _, indicator := range testPathIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// errBinary marks files that look binary.
var errBinary = errors.New("binary file")

// readLines returns the lines of a text file. Binary files return errBinary.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return nil, errBinary
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), MaxFileSize)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// lineRule inspects one line of one file.
type lineRule func(rel string, number int, line string) []interfaces.Finding

// scanLines walks root and applies rule to every line of every file accepted
// by match. Findings from test paths are flagged with TestFile.
// FilesScanned counts the text files that were actually read.
func scanLines(ctx context.Context, name, root string, match func(rel string) bool, rule lineRule) (*interfaces.ScanResult, error) {
	result := &interfaces.ScanResult{Scanner: name}

	_, err := Walk(ctx, root, func(f File) error {
		if !match(f.Rel) {
			return nil
		}
		lines, err := readLines(f.Abs)
		if err != nil {
			return nil
		}
		result.FilesScanned++
		isTest := IsTestPath(f.Rel)
		for i, line := range lines {
			for _, finding := range rule(f.Rel, i+1, line) {
				finding.Scanner = name
				finding.TestFile = finding.TestFile || isTest
				result.Findings = append(result.Findings, finding)
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// hasSuffixFold reports whether path ends with any of the suffixes, ignoring case.
func hasSuffixFold(path string, suffixes ...string) bool {
	lower := strings.ToLower(path)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// sanitizeID converts a rule name to a short uppercase ID fragment.
func sanitizeID(name string) string {
	r := strings.NewReplacer(" ", "-", "/", "-")
	return strings.ToUpper(r.Replace(name))
}
