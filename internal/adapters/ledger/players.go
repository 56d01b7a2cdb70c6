package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okian/ladder/internal/domain/model"
)

// Ledger implements the player store and the score ledger over one gorm DB.
type Ledger struct {
	db *gorm.DB
}

// New wraps db.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// DB returns the underlying handle.
func (l *Ledger) DB() *gorm.DB { return l.db }

// Close releases the connection pool.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Exists reports whether the player has a durable record.
func (l *Ledger) Exists(ctx context.Context, playerID string) (bool, error) {
	defer observe("player_exists", time.Now())
	var n int64
	if err := l.db.WithContext(ctx).Model(&model.Player{}).Where("id = ?", playerID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("player exists: %w", err)
	}
	return n > 0, nil
}

// TotalScore returns the durable total of a player. ok is false when the player is unknown.
func (l *Ledger) TotalScore(ctx context.Context, playerID string) (int64, bool, error) {
	defer observe("player_total", time.Now())
	var p model.Player
	err := l.db.WithContext(ctx).Select("id", "total_score").Where("id = ?", playerID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("player total: %w", err)
	}
	return p.TotalScore, true, nil
}

// GetTotalScoreRankCount counts players whose durable total is strictly greater than threshold.
func (l *Ledger) GetTotalScoreRankCount(ctx context.Context, threshold int64) (int64, error) {
	defer observe("rank_count", time.Now())
	var n int64
	if err := l.db.WithContext(ctx).Model(&model.Player{}).Where("total_score > ?", threshold).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("rank count: %w", err)
	}
	return n, nil
}

// GetTopNByScore returns the n players with the highest durable totals.
func (l *Ledger) GetTopNByScore(ctx context.Context, n int) ([]model.Member, error) {
	defer observe("top_players", time.Now())
	var out []model.Member
	err := l.db.WithContext(ctx).Model(&model.Player{}).
		Select("id AS player_id, total_score").
		Where("total_score >= 0").
		Order("total_score DESC").Order("id ASC").
		Limit(n).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("top players: %w", err)
	}
	return out, nil
}

// CreatePlayer registers a new player for wallet.
func (l *Ledger) CreatePlayer(ctx context.Context, wallet string) (model.Player, error) {
	p := model.Player{ID: uuid.NewString(), Wallet: strings.ToLower(wallet)}
	if err := l.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Player{}, fmt.Errorf("create player: %w", err)
	}
	return p, nil
}

// GetOrCreateByWallet returns the player owning wallet, creating it on first sight.
func (l *Ledger) GetOrCreateByWallet(ctx context.Context, wallet string) (model.Player, error) {
	wallet = strings.ToLower(wallet)
	var p model.Player
	err := l.db.WithContext(ctx).Where("wallet = ?", wallet).Take(&p).Error
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Player{}, fmt.Errorf("player by wallet: %w", err)
	}
	p, err = l.CreatePlayer(ctx, wallet)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with a concurrent registration.
		var existing model.Player
		if err := l.db.WithContext(ctx).Where("wallet = ?", wallet).Take(&existing).Error; err != nil {
			return model.Player{}, fmt.Errorf("player by wallet: %w", err)
		}
		return existing, nil
	}
	return p, err
}
