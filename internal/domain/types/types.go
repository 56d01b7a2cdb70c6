// Package types contains transport types shared by the ranking core and the HTTP layer.
package types

import (
	"fmt"
	"strings"
)

// Timeframe names a leaderboard window.
type Timeframe string

// Supported timeframes.
const (
	Daily   Timeframe = "daily"
	Weekly  Timeframe = "weekly"
	Monthly Timeframe = "monthly"
	AllTime Timeframe = "alltime"
)

// ParseTimeframe parses a case-insensitive timeframe name. An empty string means AllTime.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case "":
		return AllTime, nil
	case Daily, Weekly, Monthly, AllTime:
		return tf, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
}

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	switch tf {
	case Daily, Weekly, Monthly, AllTime:
		return true
	}
	return false
}

// Entry represents a leaderboard entry.
type Entry struct {
	PlayerID   string `json:"playerId"`
	TotalScore int64  `json:"totalScore"`
	Rank       int64  `json:"rank"`
}

// Page is one page of a timeframe leaderboard.
type Page struct {
	Items  []Entry `json:"items"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Neighbors holds the players ranked around a given player.
type Neighbors struct {
	Above []Entry `json:"above"`
	Below []Entry `json:"below"`
}

// Surround is a player's rank together with its neighbors.
type Surround struct {
	Player      Entry     `json:"player"`
	Surrounding Neighbors `json:"surrounding"`
}

// SubmitResult is returned to the client after an accepted score.
type SubmitResult struct {
	PlayerID       string `json:"playerId"`
	SubmittedScore int64  `json:"submittedScore"`
	TotalScore     int64  `json:"totalScore"`
	Rank           int64  `json:"rank"`
}
