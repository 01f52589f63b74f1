package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the local sqlite database holding the event journal and the
// catalog of Chrome profile backups.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at dbPath and migrates it.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %v", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&JournalEntry{}, &ProfileBackup{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Stats summarizes what the store holds.
type Stats struct {
	Events      int64
	Backups     int64
	BackupBytes int64
}

func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.db.Model(&JournalEntry{}).Count(&st.Events).Error; err != nil {
		return st, err
	}
	if err := s.db.Model(&ProfileBackup{}).Count(&st.Backups).Error; err != nil {
		return st, err
	}
	if err := s.db.Model(&ProfileBackup{}).Select("COALESCE(SUM(size), 0)").Scan(&st.BackupBytes).Error; err != nil {
		return st, err
	}
	return st, nil
}
