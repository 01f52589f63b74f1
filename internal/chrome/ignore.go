package chrome

import (
	"os"
	"path/filepath"
	"strings"

	ig "github.com/sabhiram/go-gitignore"
)

// BackupIgnoreFile in the profiles directory adds gitignore-style patterns
// for paths left out of profile backups.
const BackupIgnoreFile = ".backupignore"

// caches Chrome rebuilds on its own
var defaultBackupIgnore = []string{
	"Cache/",
	"Code Cache/",
	"GPUCache/",
	"GrShaderCache/",
	"GraphiteDawnCache/",
	"ShaderCache/",
	"DawnCache/",
	"Crashpad/",
	"*.tmp",
}

// backupFilter compiles the default patterns plus BackupIgnoreFile. Lines
// starting with '!' re-include what an earlier pattern excluded.
func (m *Manager) backupFilter() func(rel string, dir bool) bool {
	lines := append([]string(nil), defaultBackupIgnore...)
	if data, err := os.ReadFile(filepath.Join(m.cfg.Chrome.ProfilesPath, BackupIgnoreFile)); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines = append(lines, line)
		}
	} else if !os.IsNotExist(err) {
		m.log.Warnf("ignoring unreadable %s: %v", BackupIgnoreFile, err)
	}

	matcher := ig.CompileIgnoreLines(lines...)
	return func(rel string, dir bool) bool {
		if dir {
			rel += "/"
		}
		return matcher.MatchesPath(rel)
	}
}
