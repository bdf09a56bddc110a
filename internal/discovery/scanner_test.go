package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for file, content := range files {
		fullPath := filepath.Join(root, file)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", file, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create file %s: %v", file, err)
		}
	}
}

func TestScanner_Scan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"tests/unit/UserTest.php":        "test",
		"tests/unit/PaymentTest.php":     "test",
		"internal/store/store_test.go":   "test",
		"app/test_orders.py":             "test",
		"vendor/some/lib/LibTest.php":    "test",
		"node_modules/some/file_test.go": "test",
		".git/hooks/hook_test.go":        "test",
		"not_a_test.php":                 "test",
		"internal/store/store.go":        "test",
	})

	scanner := NewScanner([]string{"vendor", "node_modules"}, []string{"*_test.go", "*Test.php", "test_*.py"})

	t.Run("scans test files correctly", func(t *testing.T) {
		results, err := scanner.Scan(tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var rel []string
		for _, r := range results {
			p, _ := filepath.Rel(tmpDir, r)
			rel = append(rel, filepath.ToSlash(p))
		}
		sort.Strings(rel)

		expected := []string{
			"app/test_orders.py",
			"internal/store/store_test.go",
			"tests/unit/PaymentTest.php",
			"tests/unit/UserTest.php",
		}
		if len(rel) != len(expected) {
			t.Fatalf("expected %v, got %v", expected, rel)
		}
		for i := range expected {
			if rel[i] != expected[i] {
				t.Errorf("expected %s at %d, got %s", expected[i], i, rel[i])
			}
		}
	})

	t.Run("hidden root is still scanned", func(t *testing.T) {
		hidden := filepath.Join(tmpDir, ".git")
		results, err := scanner.Scan(hidden)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Errorf("expected 1 test file, got %v", results)
		}
	})

	t.Run("returns error for non-existent directory", func(t *testing.T) {
		_, err := scanner.Scan("/non/existent/path")
		if err == nil {
			t.Error("expected error for non-existent directory")
		}
	})

	t.Run("returns error for file instead of directory", func(t *testing.T) {
		_, err := scanner.Scan(filepath.Join(tmpDir, "not_a_test.php"))
		if err == nil {
			t.Error("expected error for file path")
		}
	})
}
