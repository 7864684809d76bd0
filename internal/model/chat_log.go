package model

import "time"

type ChatStatus string

const (
	ChatSuccess ChatStatus = "success"
	ChatError   ChatStatus = "error"
)

// ChatLog records one chat request. Rows are written once and never updated.
type ChatLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	RequestID      string     `gorm:"size:36;uniqueIndex" json:"request_id"`
	UserID         *uint      `gorm:"index" json:"user_id"`
	Message        string     `gorm:"type:text;not null" json:"message"`
	Response       string     `gorm:"type:text" json:"response"`
	Status         ChatStatus `gorm:"size:16;not null;index" json:"status"`
	ResponseTimeMS int64      `json:"response_time_ms"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}
