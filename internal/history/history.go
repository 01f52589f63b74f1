// Package history remembers the project roots groucho has been used in.
package history

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	HistoryDir  = ".groucho"
	HistoryFile = "projects.json"
)

type Entry struct {
	Path       string    `json:"path"`
	LastAccess time.Time `json:"last_access"`
}

type file struct {
	Entries []Entry `json:"entries"`
}

// Recent is the list of recently used project roots, kept in one JSON file.
type Recent struct {
	path string
	now  func() time.Time
}

// Default keeps the list under the user's home directory.
func Default() *Recent {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return New(filepath.Join(home, HistoryDir, HistoryFile))
}

func New(path string) *Recent {
	return &Recent{path: path, now: time.Now}
}

func (r *Recent) load() (*file, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return &file{}, nil
	}
	if err != nil {
		return nil, err
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "corrupt project history %s", r.path)
	}
	return &f, nil
}

func (r *Recent) save(f *file) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// Touch records path as used now.
func (r *Recent) Touch(path string) error {
	f, err := r.load()
	if err != nil {
		return err
	}
	for i, e := range f.Entries {
		if e.Path == path {
			f.Entries[i].LastAccess = r.now()
			return r.save(f)
		}
	}
	f.Entries = append(f.Entries, Entry{Path: path, LastAccess: r.now()})
	return r.save(f)
}

func (r *Recent) Remove(path string) error {
	f, err := r.load()
	if err != nil {
		return err
	}
	for i, e := range f.Entries {
		if e.Path == path {
			f.Entries = append(f.Entries[:i], f.Entries[i+1:]...)
			return r.save(f)
		}
	}
	return nil
}

// Paths returns the recorded roots, most recently used first.
func (r *Recent) Paths() ([]string, error) {
	f, err := r.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(f.Entries, func(i, j int) bool {
		return f.Entries[i].LastAccess.After(f.Entries[j].LastAccess)
	})
	paths := make([]string, 0, len(f.Entries))
	for _, e := range f.Entries {
		paths = append(paths, e.Path)
	}
	return paths, nil
}

// Search returns the recorded roots containing query, case-insensitively,
// in alphabetical order.
func (r *Recent) Search(query string) ([]string, error) {
	paths, err := r.Paths()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var results []string
	for _, p := range paths {
		if strings.Contains(strings.ToLower(p), q) {
			results = append(results, p)
		}
	}
	sort.Strings(results)
	return results, nil
}
