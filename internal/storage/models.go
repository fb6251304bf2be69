package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnalysisRecord is one row of the append-only analysis history
type AnalysisRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Kind      string `gorm:"size:16;not null;index:idx_analysis_lookup,priority:2"`
	Chain     string `gorm:"size:32;not null"`
	Address   string `gorm:"size:42;not null;index:idx_analysis_lookup,priority:1"`
	Score     int    `gorm:"not null"`
	Grade     string `gorm:"size:4"`
	Degraded  bool   `gorm:"not null;default:false"`
	Report    string `gorm:"type:text;not null"`
	CreatedTS int64  `gorm:"not null;index"`
}

func (AnalysisRecord) TableName() string {
	return "analysis_records"
}

// AlertRecord stores every alert that was sent, for cooldown checks
type AlertRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Kind      string `gorm:"size:16;not null"`
	Severity  string `gorm:"size:8;not null"`
	Chain     string `gorm:"size:32;not null"`
	Address   string `gorm:"size:42;not null;index"`
	Score     int    `gorm:"not null"`
	Summary   string `gorm:"size:512"`
	CreatedTS int64  `gorm:"not null;index"`
}

func (AlertRecord) TableName() string {
	return "alert_records"
}

// BeforeCreate hook for ids and timestamps
func (r *AnalysisRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedTS == 0 {
		r.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (a *AlertRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedTS == 0 {
		a.CreatedTS = time.Now().Unix()
	}
	return nil
}
