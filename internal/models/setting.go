package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Setting stores a runtime override such as the referral bonus amount.
type Setting struct {
	Key       string       `gorm:"type:varchar(255);primaryKey"`                      // Setting key.
	Value     SettingValue `gorm:"column:value"`                                      // JSON-encoded value.
	UpdatedAt time.Time    `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}

// SettingValue is a JSON document kept as jsonb on PostgreSQL and as TEXT on SQLite.
// A jsonb column has NUMERIC affinity on SQLite, which turns a bare number such as 8
// into an integer that datatypes.JSON cannot scan back.
type SettingValue datatypes.JSON

// Value implements driver.Valuer.
func (v SettingValue) Value() (driver.Value, error) {
	return datatypes.JSON(v).Value()
}

// Scan implements sql.Scanner.
func (v *SettingValue) Scan(src any) error {
	return (*datatypes.JSON)(v).Scan(src)
}

// GormDataType reports the generic data type.
func (SettingValue) GormDataType() string {
	return "json"
}

// GormDBDataType picks the column type per dialect.
func (SettingValue) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}
