package repository

import (
	"context"
	"errors"
	"time"

	"golang-surge-signal/internal/entity"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSettingsNotFound = errors.New("auto trading settings not found")

var editableSettingsColumns = []string{
	"enabled", "total_budget", "amount_per_trade", "risk_level",
	"stop_loss_enabled", "stop_loss_percent", "take_profit_enabled", "take_profit_percent",
	"min_confidence", "max_positions", "excluded_coins", "position_strategy",
	"max_amount_per_coin", "allow_duplicate_positions", "dynamic_target_enabled",
	"min_target_percent", "max_target_percent", "updated_at",
}

// AutoTradingSettingsRepository stores per-user automation settings. Counters are only
// ever changed with in-place increments so concurrent writers never lose updates.
type AutoTradingSettingsRepository interface {
	FindByUserID(ctx context.Context, userID int64) (*entity.AutoTradingSettings, error)
	GetOrCreate(ctx context.Context, defaults *entity.AutoTradingSettings) (*entity.AutoTradingSettings, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	Save(ctx context.Context, settings *entity.AutoTradingSettings) error
	// Reserve commits amount and one position slot if both fit. It reports false when they do not.
	Reserve(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error)
	// Commit books a position unconditionally. Manual buys use it.
	Commit(ctx context.Context, userID int64, amount decimal.Decimal) error
	Release(ctx context.Context, userID int64, amount decimal.Decimal) error
	RecordTrade(ctx context.Context, userID int64) error
	RecordClose(ctx context.Context, userID int64, win bool, realized decimal.Decimal) error
}

type autoTradingSettingsRepository struct {
	db *gorm.DB
}

func NewAutoTradingSettingsRepository(db *gorm.DB) AutoTradingSettingsRepository {
	return &autoTradingSettingsRepository{db: db}
}

func (r *autoTradingSettingsRepository) FindByUserID(ctx context.Context, userID int64) (*entity.AutoTradingSettings, error) {
	var settings entity.AutoTradingSettings
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (r *autoTradingSettingsRepository) GetOrCreate(ctx context.Context, defaults *entity.AutoTradingSettings) (*entity.AutoTradingSettings, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(defaults).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUserID(ctx, defaults.UserID)
}

func (r *autoTradingSettingsRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&entity.AutoTradingSettings{}).Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}

func (r *autoTradingSettingsRepository) Save(ctx context.Context, settings *entity.AutoTradingSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&entity.AutoTradingSettings{}).
		Where("user_id = ?", settings.UserID).
		Select(editableSettingsColumns).
		Updates(settings)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSettingsNotFound
	}
	return nil
}

func (r *autoTradingSettingsRepository) Reserve(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.AutoTradingSettings{}).
		Where("user_id = ? AND committed_amount + ? <= total_budget AND open_positions < max_positions", userID, amount).
		Updates(map[string]interface{}{
			"committed_amount": gorm.Expr("committed_amount + ?", amount),
			"open_positions":   gorm.Expr("open_positions + 1"),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *autoTradingSettingsRepository) Commit(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&entity.AutoTradingSettings{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"committed_amount": gorm.Expr("committed_amount + ?", amount),
			"open_positions":   gorm.Expr("open_positions + 1"),
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *autoTradingSettingsRepository) Release(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&entity.AutoTradingSettings{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"committed_amount": gorm.Expr("GREATEST(committed_amount - ?, 0)", amount),
			"open_positions":   gorm.Expr("GREATEST(open_positions - 1, 0)"),
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *autoTradingSettingsRepository) RecordTrade(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Model(&entity.AutoTradingSettings{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_trades": gorm.Expr("total_trades + 1"),
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *autoTradingSettingsRepository) RecordClose(ctx context.Context, userID int64, win bool, realized decimal.Decimal) error {
	successful := 0
	if win {
		successful = 1
	}
	return r.db.WithContext(ctx).Model(&entity.AutoTradingSettings{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"successful_trades": gorm.Expr("successful_trades + ?", successful),
			"total_profit_loss": gorm.Expr("total_profit_loss + ?", realized),
			"updated_at":        time.Now().UTC(),
		}).Error
}
