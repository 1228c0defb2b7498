package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DetailsJSON stores the record details map as a JSON column.
type DetailsJSON map[string]interface{}

func (d DetailsJSON) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *DetailsJSON) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("expected []byte, got %T", value)
	}
}

// RedactedList stores detected entity names in postgres array format.
type RedactedList []string

func (l RedactedList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return pq.Array([]string(l)).Value()
}

func (l *RedactedList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var strs []string
	if err := pq.Array(&strs).Scan(value); err != nil {
		return fmt.Errorf("failed to scan redacted list: %w", err)
	}
	*l = strs
	return nil
}

// RecordModel is the database representation of an audit record.
type RecordModel struct {
	ID             string    `gorm:"primaryKey"`
	Timestamp      time.Time `gorm:"index;not null"`
	Type           string    `gorm:"not null"`
	ConversationID string    `gorm:"index"`
	Direction      string    `gorm:"not null"`
	GuardrailName  string
	GuardrailKind  string
	Decision       string `gorm:"index;not null"`
	Reason         string
	LatencyMs      int64
	Details        DetailsJSON  `gorm:"type:jsonb"`
	Redacted       RedactedList `gorm:"type:text"`
	CreatedAt      time.Time
}

func (RecordModel) TableName() string {
	return "audit_records"
}

// DatabaseSink persists audit records through GORM. It owns the
// connection and closes it on Close.
type DatabaseSink struct {
	db *gorm.DB
}

func NewDatabaseSink(db *gorm.DB) (*DatabaseSink, error) {
	if err := db.AutoMigrate(&RecordModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit schema: %w", err)
	}
	return &DatabaseSink{db: db}, nil
}

func (s *DatabaseSink) Write(rec Record) error {
	model := RecordModel{
		ID:             rec.ID,
		Timestamp:      rec.Timestamp,
		Type:           string(rec.Type),
		ConversationID: rec.ConversationID,
		Direction:      string(rec.Direction),
		GuardrailName:  rec.GuardrailName,
		GuardrailKind:  rec.GuardrailKind,
		Decision:       string(rec.Decision),
		Reason:         rec.Reason,
		LatencyMs:      rec.LatencyMs,
		Details:        DetailsJSON(rec.Details),
		Redacted:       RedactedList(rec.Redacted),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

func (s *DatabaseSink) Flush() error {
	return nil
}

func (s *DatabaseSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to resolve audit connection: %w", err)
	}
	return sqlDB.Close()
}
