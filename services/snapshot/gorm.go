package snapshot

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StateEntry struct {
	Key       string    `gorm:"column:state_key;primaryKey;size:255"`
	Value     string    `gorm:"column:value;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (StateEntry) TableName() string {
	return "engine_state"
}

// DatabaseStore keeps the snapshot in the engine_state table, one row per key.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore migrates engine_state if needed.
func NewDatabaseStore(db *gorm.DB) (*DatabaseStore, error) {
	if err := db.AutoMigrate(&StateEntry{}); err != nil {
		return nil, fmt.Errorf("migrate engine_state: %w", err)
	}
	return &DatabaseStore{db: db}, nil
}

func (d *DatabaseStore) Load(ctx context.Context) (Snapshot, error) {
	var rows []StateEntry
	if err := d.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	out := make(Snapshot, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (d *DatabaseStore) Save(ctx context.Context, s Snapshot) error {
	now := time.Now().UTC()
	rows := make([]StateEntry, 0, len(s))
	keys := make([]string, 0, len(s))
	for k, v := range s {
		rows = append(rows, StateEntry{Key: k, Value: v, UpdatedAt: now})
		keys = append(keys, k)
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if len(keys) > 0 {
			del = del.Where("state_key NOT IN ?", keys)
		}
		if err := del.Delete(&StateEntry{}).Error; err != nil {
			return fmt.Errorf("prune snapshot: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "state_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).CreateInBatches(rows, 200).Error
		if err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		return nil
	})
}

func (d *DatabaseStore) Clear(ctx context.Context) error {
	return d.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&StateEntry{}).Error
}
