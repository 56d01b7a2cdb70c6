// Package model contains domain models passed between layers and persisted by the ledger.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// Player is a registered participant. TotalScore mirrors the sum of the
// player's persisted score events and only ever grows.
type Player struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Wallet     string    `gorm:"size:42;uniqueIndex;not null"`
	TotalScore int64     `gorm:"not null;default:0;index"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName keeps the table name stable regardless of gorm naming strategy.
func (Player) TableName() string { return "players" }

// ScoreEvent is one accepted score submission.
type ScoreEvent struct {
	ID        string            `gorm:"primaryKey;size:36"`
	PlayerID  string            `gorm:"size:36;not null;uniqueIndex:idx_scores_player_ts;index:idx_scores_player_score"`
	Score     int64             `gorm:"not null;index:idx_scores_player_score"`
	Metadata  datatypes.JSONMap `gorm:"type:json"`
	Timestamp time.Time         `gorm:"not null;uniqueIndex:idx_scores_player_ts"`
	CreatedAt time.Time         `gorm:"not null;index"`
}

// TableName keeps the table name stable regardless of gorm naming strategy.
func (ScoreEvent) TableName() string { return "scores" }

// PersistJob is the write-behind payload for an accepted score. TotalScore is
// the running total the fast store returned for it.
type PersistJob struct {
	Event      ScoreEvent
	TotalScore int64
}

// Member is a (player, total) pair loaded into or read from the ranked set.
type Member struct {
	PlayerID   string `json:"playerId"`
	TotalScore int64  `json:"totalScore"`
}
