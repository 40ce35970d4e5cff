package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// writeTree creates the given files under a fresh temp dir and returns it.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func findingsWithTitle(findings []interfaces.Finding, title string) []interfaces.Finding {
	var out []interfaces.Finding
	for _, f := range findings {
		if f.Title == title {
			out = append(out, f)
		}
	}
	return out
}

func findingByIDPrefix(t *testing.T, findings []interfaces.Finding, prefix string) interfaces.Finding {
	t.Helper()
	for _, f := range findings {
		if len(f.ID) >= len(prefix) && f.ID[:len(prefix)] == prefix {
			return f
		}
	}
	t.Fatalf("no finding with ID prefix %q in %d findings", prefix, len(findings))
	return interfaces.Finding{}
}
