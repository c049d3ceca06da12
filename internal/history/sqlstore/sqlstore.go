package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/database"
)

type message struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Room      string `gorm:"size:255;not null;index:idx_chat_messages_room_id,priority:1"`
	Username  string `gorm:"size:255;not null"`
	Msg       string `gorm:"type:text;not null"`
	Time      string `gorm:"size:32"`
	CreatedAt time.Time
}

func (message) TableName() string {
	return "chat_messages"
}

func (m message) record() domain.Record {
	return domain.Record{
		ID:        strconv.FormatUint(m.ID, 10),
		Room:      m.Room,
		Username:  m.Username,
		Text:      m.Msg,
		Time:      m.Time,
		CreatedAt: m.CreatedAt,
	}
}

// Store persists history through GORM. The autoincrement key is the
// insertion order.
type Store struct {
	db *gorm.DB
}

func New(cfg database.Config) (*Store, error) {
	db, err := database.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	store, err := NewWithDB(db)
	if err != nil {
		database.Close(db)
		return nil, err
	}
	return store, nil
}

// NewWithDB migrates the schema on an existing connection.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&message{}); err != nil {
		return nil, fmt.Errorf("%w: failed to migrate chat_messages: %w", domain.ErrStoreUnavailable, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Append(ctx context.Context, record domain.Record) (domain.Record, error) {
	row := message{
		Room:      record.Room,
		Username:  record.Username,
		Msg:       record.Text,
		Time:      record.Time,
		CreatedAt: record.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Record{}, fmt.Errorf("%w: failed to insert message: %w", domain.ErrStoreUnavailable, err)
	}
	return row.record(), nil
}

func (s *Store) Recent(ctx context.Context, room string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return []domain.Record{}, nil
	}

	var rows []message
	err := s.db.WithContext(ctx).
		Where("room = ?", room).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query messages: %w", domain.ErrStoreUnavailable, err)
	}

	records := make([]domain.Record, len(rows))
	for i, row := range rows {
		records[len(rows)-1-i] = row.record()
	}
	return records, nil
}

func (s *Store) Close() error {
	return database.Close(s.db)
}
