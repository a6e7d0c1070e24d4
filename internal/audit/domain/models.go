package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog records one state-changing request.
type AuditLog struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	ActorID   *string           `gorm:"type:text;index" json:"actor_id"`
	Route     string            `gorm:"type:text;not null" json:"route"`
	Method    string            `gorm:"type:text;not null" json:"method"`
	Body      string            `gorm:"type:text;not null" json:"body"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
