package chrome

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"groucho/internal/events"
	"groucho/internal/securebackup"
	"groucho/internal/store"
)

const (
	profilePrefix      = "chrome-profile-"
	defaultProfileDir  = profilePrefix + "groucho"
	backupMarker       = "_backup_"
	backupTimeLayout   = "20060102_150405"
	archiveExtension   = ".tar.gz"
	restoreStagingTail = ".restoring"
)

var profileNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ProfileDirName maps a profile name to its directory name.
func ProfileDirName(name string) string {
	if name == DefaultProfile {
		return defaultProfileDir
	}
	return profilePrefix + name
}

// ProfilePath returns the directory of the named profile.
func (m *Manager) ProfilePath(name string) (string, error) {
	if !profileNameRe.MatchString(name) {
		return "", errors.Wrapf(ErrInvalidProfile, "%q", name)
	}
	return filepath.Join(m.cfg.Chrome.ProfilesPath, ProfileDirName(name)), nil
}

func (m *Manager) profileFields(name, dir string) map[string]string {
	return map[string]string{"profile": name, "path": dir}
}

// CreateProfile makes a new, empty profile.
func (m *Manager) CreateProfile(name string) (string, error) {
	if name == DefaultProfile {
		return "", ErrDefaultProfile
	}
	dir, err := m.ProfilePath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); err == nil {
		return "", errors.Wrapf(ErrProfileExists, "'%s'", name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create profile")
	}
	m.emit(events.ChromeProfileCreated, fmt.Sprintf("profile '%s' created", name), m.profileFields(name, dir))
	return dir, nil
}

// DeleteProfile removes a profile and everything in it.
func (m *Manager) DeleteProfile(name string) error {
	if name == DefaultProfile {
		return ErrDefaultProfile
	}
	dir, err := m.ProfilePath(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		return errors.Wrapf(ErrProfileNotFound, "'%s'", name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "failed to delete profile")
	}
	m.emit(events.ChromeProfileDeleted, fmt.Sprintf("profile '%s' deleted", name), m.profileFields(name, dir))
	return nil
}

// ResetProfile empties a profile, stopping Chrome first. A missing profile
// is simply created; created reports that case.
func (m *Manager) ResetProfile(ctx context.Context, name string) (created bool, err error) {
	dir, err := m.ProfilePath(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, errors.Wrap(err, "failed to create profile")
		}
		m.emit(events.ChromeProfileReset, fmt.Sprintf("profile '%s' created", name), m.profileFields(name, dir))
		return true, nil
	}

	if m.IsRunning(ctx) {
		if _, err := m.Stop(ctx, false); err != nil {
			return false, err
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, errors.Wrap(err, "failed to reset profile")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, errors.Wrap(err, "failed to reset profile")
	}
	m.emit(events.ChromeProfileReset, fmt.Sprintf("profile '%s' reset", name), m.profileFields(name, dir))
	return false, nil
}

// Profile is one entry of ListProfiles.
type Profile struct {
	Name string
	Path string
	Size int64
	// Created is the directory's modification time; portable birth times
	// are not available.
	Created time.Time
}

// ListProfiles returns every profile sorted by name.
func (m *Manager) ListProfiles() ([]Profile, error) {
	entries, err := os.ReadDir(m.cfg.Chrome.ProfilesPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var profiles []Profile
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), profilePrefix) {
			continue
		}
		name := strings.TrimPrefix(e.Name(), profilePrefix)
		if e.Name() == defaultProfileDir {
			name = DefaultProfile
		}
		dir := filepath.Join(m.cfg.Chrome.ProfilesPath, e.Name())
		p := Profile{Name: name, Path: dir, Size: dirSize(dir)}
		if info, err := e.Info(); err == nil {
			p.Created = info.ModTime()
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// Backup describes a written profile backup.
type Backup struct {
	Profile   string
	Path      string
	Size      int64
	Hash      string
	Encrypted bool
}

// BackupName is the default file name for a backup of profile taken at t.
func BackupName(profile string, t time.Time, encrypted bool) string {
	name := profile + backupMarker + t.Format(backupTimeLayout) + archiveExtension
	if encrypted {
		name += securebackup.Extension
	}
	return name
}

// ProfileNameFromBackup recovers the profile name from a backup file name.
func ProfileNameFromBackup(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, backupMarker); i > 0 {
		return base[:i]
	}
	for _, ext := range []string{securebackup.Extension, ".gz", ".tgz", ".tar"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// BackupProfile archives a profile to out, or to a timestamped file in the
// profiles directory when out is empty. A non-empty password seals the
// archive.
func (m *Manager) BackupProfile(name, out string, password []byte) (*Backup, error) {
	dir, err := m.ProfilePath(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.Wrapf(ErrProfileNotFound, "'%s'", name)
	}
	encrypted := len(password) > 0
	if out == "" {
		out = filepath.Join(m.cfg.Chrome.ProfilesPath, BackupName(name, m.now(), encrypted))
	}

	var buf bytes.Buffer
	if err := writeTarGz(&buf, dir, filepath.Base(dir), m.backupFilter()); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return nil, err
	}
	if encrypted {
		if err := securebackup.Seal(password, buf.Bytes(), out); err != nil {
			return nil, errors.Wrap(err, "failed to encrypt backup")
		}
	} else if err := writeAtomic(out, buf.Bytes()); err != nil {
		return nil, errors.Wrap(err, "failed to write backup")
	}

	b := &Backup{Profile: name, Path: out, Encrypted: encrypted}
	if m.store != nil {
		rec, err := m.store.RecordBackup(name, out, encrypted)
		if err != nil {
			m.log.Warnf("failed to catalogue backup: %v", err)
		} else {
			b.Path, b.Size, b.Hash = rec.Path, rec.Size, rec.Hash
		}
	}
	if b.Hash == "" {
		if b.Hash, err = store.HashFile(out); err != nil {
			return nil, err
		}
		if info, err := os.Stat(out); err == nil {
			b.Size = info.Size()
		}
	}

	m.emit(events.ChromeProfileBackedUp, fmt.Sprintf("profile '%s' backed up to %s", name, b.Path), map[string]string{
		"profile": name,
		"path":    b.Path,
		"hash":    b.Hash,
	})
	return b, nil
}

// Backups lists the catalogued backups of profile, or of every profile when
// it is empty, newest first. Records whose file is gone are dropped from the
// catalogue.
func (m *Manager) Backups(profile string) ([]store.ProfileBackup, error) {
	if m.store == nil {
		return nil, ErrNoCatalog
	}
	recs, err := m.store.Backups(profile)
	if err != nil {
		return nil, err
	}
	kept := recs[:0]
	for _, rec := range recs {
		if _, err := os.Stat(rec.Path); os.IsNotExist(err) {
			m.forgetBackup(rec.Path)
			continue
		}
		kept = append(kept, rec)
	}
	return kept, nil
}

func (m *Manager) forgetBackup(path string) {
	if err := m.store.ForgetBackup(path); err != nil {
		m.log.Debugf("failed to forget backup %s: %v", path, err)
		return
	}
	m.log.Debugf("forgot missing backup %s", path)
}

// RestoreProfile replaces a profile with the contents of a backup. The
// profile name defaults to the one encoded in the file name. Chrome is
// stopped first when running.
func (m *Manager) RestoreProfile(ctx context.Context, path, name string, password []byte) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && m.store != nil {
			m.forgetBackup(path)
		}
		return "", errors.Errorf("backup file not found: %s", path)
	}
	if name == "" {
		name = ProfileNameFromBackup(path)
	}
	dir, err := m.ProfilePath(name)
	if err != nil {
		return "", err
	}

	if m.store != nil {
		if _, err := m.store.VerifyBackup(path); err != nil {
			return "", err
		}
	}

	var archive io.Reader
	if securebackup.IsSealed(path) {
		if len(password) == 0 {
			return "", ErrPasswordRequired
		}
		plain, err := securebackup.Open(password, path)
		if err != nil {
			return "", err
		}
		archive = bytes.NewReader(plain)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		archive = f
	}

	if m.IsRunning(ctx) {
		if _, err := m.Stop(ctx, false); err != nil {
			return "", err
		}
	}

	staging := filepath.Join(filepath.Dir(dir), "."+filepath.Base(dir)+restoreStagingTail)
	_ = os.RemoveAll(staging)
	if err := extractTarGz(archive, staging); err != nil {
		_ = os.RemoveAll(staging)
		return "", errors.Wrap(err, "failed to restore profile")
	}
	if err := os.RemoveAll(dir); err != nil {
		_ = os.RemoveAll(staging)
		return "", errors.Wrap(err, "failed to remove existing profile")
	}
	if err := os.Rename(staging, dir); err != nil {
		return "", errors.Wrap(err, "failed to restore profile")
	}

	m.emit(events.ChromeProfileRestored, fmt.Sprintf("profile '%s' restored from %s", name, path), m.profileFields(name, dir))
	return name, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
