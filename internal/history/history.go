// Package history records completed compression jobs in sqlite.
package history

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Record is one completed job.
type Record struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	JobID       string    `gorm:"index" json:"job_id"`
	Filename    string    `json:"filename"`
	Pages       int       `json:"pages"`
	Level       string    `json:"level"`
	BytesBefore int64     `json:"bytes_before"`
	BytesAfter  int64     `json:"bytes_after"`
	Duration    int64     `json:"duration_ms"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Add(r Record) error {
	return s.db.Create(&r).Error
}

// Recent returns the latest jobs, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	var recs []Record
	err := s.db.Order("created_at desc").Limit(limit).Find(&recs).Error
	return recs, err
}
