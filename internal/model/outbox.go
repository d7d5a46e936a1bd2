package model

import "time"

// OutboxEvent is written in the same transaction as the business mutation it
// announces and later relayed to the broker by the poller. Rows are append-only:
// the only mutation ever applied is setting ProcessedAt, exactly once.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	EventName   string    `gorm:"size:64;not null;index"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }

// ProcessedEvent is the idempotency ledger. The primary-key constraint is the
// dedup gate: a second insert for the same ID fails with a unique violation
// instead of silently succeeding.
type ProcessedEvent struct {
	ID        string    `gorm:"primaryKey;size:128"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ProcessedEvent) TableName() string { return "processed_event" }
