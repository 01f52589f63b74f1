package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"groucho/internal/eventbus"
)

// JournalEntry is one event seen on the bus.
type JournalEntry struct {
	ID        uint      `gorm:"primarykey"`
	Event     string    `gorm:"index;not null"`
	Key       string    `gorm:"not null"`
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

// Record appends an event to the journal. The payload is stored as JSON when
// it can be encoded and as its %v rendering otherwise.
func (s *Store) Record(event, key string, payload any) error {
	entry := JournalEntry{
		Event:   event,
		Key:     key,
		Payload: encodePayload(payload),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record %s: %v", event, err)
	}
	return nil
}

func encodePayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}

// Recent returns up to limit entries, newest first. A non-empty prefix keeps
// only events whose name starts with it.
func (s *Store) Recent(limit int, prefix string) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.Order("created_at DESC").Order("id DESC").Limit(limit)
	if prefix != "" {
		q = q.Where(`event LIKE ? ESCAPE '\'`, likePrefix(prefix))
	}

	var entries []JournalEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix matches prefix literally, so "_" and "%" in event names are not
// wildcards.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

// Prune deletes entries older than maxAge and returns how many went away.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	result := s.db.Where("created_at < ?", cutoff).Delete(&JournalEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune journal: %v", result.Error)
	}
	return result.RowsAffected, nil
}

// Attach journals every event matching patterns (exact names or wildcard
// keys) and returns a function that detaches all of them.
func (s *Store) Attach(bus *eventbus.Bus, patterns ...string) eventbus.Unsubscribe {
	log := logrus.WithField("process", "journal")

	unsubs := make([]eventbus.Unsubscribe, 0, len(patterns))
	for _, pattern := range patterns {
		key := pattern
		unsubs = append(unsubs, bus.SubscribeNamed(key, func(payload any, event string) {
			if err := s.Record(event, key, payload); err != nil {
				log.WithError(err).Warn("journal write failed")
			}
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
