package retriever

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListDocuments snapshots the PDF files present in dir at call time. There
// is no manifest: presence in the directory is what makes a document part
// of the corpus. Every call returns a fresh slice; callers own staleness.
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list documents in %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
