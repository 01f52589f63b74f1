package util

import (
	"os"
	"path/filepath"
)

// rootMarkers identify a groucho project directory, checked in order.
var rootMarkers = []string{"groucho.yaml", "docker-compose.yml"}

// FindProjectRoot searches upward from startPath for a directory carrying one
// of the project markers. When none is found it returns startPath unchanged.
func FindProjectRoot(startPath string) string {
	for _, marker := range rootMarkers {
		if root, ok := findUpward(startPath, marker); ok {
			return root
		}
	}
	return filepath.Clean(startPath)
}

func findUpward(startPath, marker string) (string, bool) {
	currentPath := filepath.Clean(startPath)
	for {
		if _, err := os.Stat(filepath.Join(currentPath, marker)); err == nil {
			return currentPath, true
		}

		parentPath := filepath.Dir(currentPath)
		// Stop if we've reached the root or can't go higher
		if parentPath == currentPath || parentPath == "." {
			return "", false
		}
		currentPath = parentPath
	}
}
