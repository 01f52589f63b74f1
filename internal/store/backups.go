package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"gorm.io/gorm"
)

// ErrChecksumMismatch is returned by VerifyBackup when a catalogued backup no
// longer matches its recorded hash.
var ErrChecksumMismatch = errors.New("backup checksum mismatch")

// ProfileBackup is a catalogued Chrome profile backup.
type ProfileBackup struct {
	ID        uint      `gorm:"primarykey"`
	Profile   string    `gorm:"index;not null"`
	Path      string    `gorm:"uniqueIndex;not null"`
	Hash      string    `gorm:"not null"`
	Size      int64     `gorm:"not null"`
	Encrypted bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HashFile calculates the xxHash of a file.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := xxhash.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// RecordBackup hashes the backup at path and stores or refreshes its record.
func (s *Store) RecordBackup(profile, path string, encrypted bool) (*ProfileBackup, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	hash, err := HashFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to hash backup: %v", err)
	}

	var rec ProfileBackup
	err = s.db.Where("path = ?", absPath).
		Assign(map[string]interface{}{
			"profile":   profile,
			"hash":      hash,
			"size":      info.Size(),
			"encrypted": encrypted,
		}).
		FirstOrCreate(&rec, ProfileBackup{Path: absPath}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record backup: %v", err)
	}
	return &rec, nil
}

// BackupFor returns the record for path, or nil when it was never catalogued.
func (s *Store) BackupFor(path string) (*ProfileBackup, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	var rec ProfileBackup
	err = s.db.Where("path = ?", absPath).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Backups lists catalogued backups, newest first. An empty profile lists all.
func (s *Store) Backups(profile string) ([]ProfileBackup, error) {
	q := s.db.Order("created_at DESC").Order("id DESC")
	if profile != "" {
		q = q.Where("profile = ?", profile)
	}
	var recs []ProfileBackup
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// VerifyBackup checks path against its catalogued hash. Uncatalogued files
// pass with known == false.
func (s *Store) VerifyBackup(path string) (known bool, err error) {
	rec, err := s.BackupFor(path)
	if err != nil || rec == nil {
		return false, err
	}
	hash, err := HashFile(path)
	if err != nil {
		return true, err
	}
	if hash != rec.Hash {
		return true, fmt.Errorf("%w: %s", ErrChecksumMismatch, filepath.Base(path))
	}
	return true, nil
}

// ForgetBackup removes the record for path, if any.
func (s *Store) ForgetBackup(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return s.db.Where("path = ?", absPath).Delete(&ProfileBackup{}).Error
}
