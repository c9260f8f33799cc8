package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/entity"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSignalNotFound   = errors.New("signal not found")
	ErrConcurrentUpdate = errors.New("signal was modified concurrently")
)

const maxPageSize = 200

// SignalRepository persists signals and serialises their state changes.
type SignalRepository interface {
	Create(ctx context.Context, signal *entity.Signal) error
	FindByID(ctx context.Context, id int64) (*entity.Signal, error)
	Find(ctx context.Context, param dto.ListSignalsParam) ([]entity.Signal, int64, error)
	FindByStatus(ctx context.Context, status entity.SignalStatus, limit int) ([]entity.Signal, error)
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]entity.Signal, error)
	HasOpenSignal(ctx context.Context, userID int64, market string) (bool, error)
	OpenAmountByMarket(ctx context.Context, userID int64, market string) (decimal.Decimal, error)
	// Update locks the row, applies fn and saves the result. fn errors roll back.
	Update(ctx context.Context, id int64, fn func(signal *entity.Signal) error) (*entity.Signal, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	Aggregate(ctx context.Context, userID int64) (*dto.SignalAggregate, error)
}

type signalRepository struct {
	db *gorm.DB
}

func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

func (r *signalRepository) Create(ctx context.Context, signal *entity.Signal) error {
	if signal.Version == 0 {
		signal.Version = 1
	}
	return r.db.WithContext(ctx).Create(signal).Error
}

func (r *signalRepository) FindByID(ctx context.Context, id int64) (*entity.Signal, error) {
	var signal entity.Signal
	if err := r.db.WithContext(ctx).First(&signal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSignalNotFound
		}
		return nil, err
	}
	return &signal, nil
}

func (r *signalRepository) Find(ctx context.Context, param dto.ListSignalsParam) ([]entity.Signal, int64, error) {
	qFilter := []string{}
	qFilterParam := []interface{}{}

	if param.UserID != nil {
		qFilter = append(qFilter, "user_id = ?")
		qFilterParam = append(qFilterParam, *param.UserID)
	}
	if param.Status != nil {
		qFilter = append(qFilter, "status = ?")
		qFilterParam = append(qFilterParam, string(*param.Status))
	}
	if param.Market != "" {
		qFilter = append(qFilter, "market = ?")
		qFilterParam = append(qFilterParam, strings.ToUpper(param.Market))
	}

	query := r.db.WithContext(ctx).Model(&entity.Signal{})
	if len(qFilter) > 0 {
		query = query.Where(strings.Join(qFilter, " AND "), qFilterParam...)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count signals: %w", err)
	}

	limit := param.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = 50
	}
	offset := param.Offset
	if offset < 0 {
		offset = 0
	}

	var signals []entity.Signal
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&signals).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list signals: %w", err)
	}
	return signals, total, nil
}

func (r *signalRepository) FindByStatus(ctx context.Context, status entity.SignalStatus, limit int) ([]entity.Signal, error) {
	var signals []entity.Signal
	query := r.db.WithContext(ctx).Where("status = ?", string(status)).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}

func (r *signalRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]entity.Signal, error) {
	var signals []entity.Signal
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", string(entity.SignalStatusPending), now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}

func (r *signalRepository) HasOpenSignal(ctx context.Context, userID int64, market string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Signal{}).
		Where("user_id = ? AND market = ? AND status IN ?", userID, strings.ToUpper(market),
			[]string{string(entity.SignalStatusPending), string(entity.SignalStatusBought)}).
		Count(&count).Error
	return count > 0, err
}

func (r *signalRepository) OpenAmountByMarket(ctx context.Context, userID int64, market string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&entity.Signal{}).
		Select("COALESCE(SUM(trade_amount), 0)").
		Where("user_id = ? AND market = ? AND status = ?", userID, strings.ToUpper(market), string(entity.SignalStatusBought)).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *signalRepository) Update(ctx context.Context, id int64, fn func(signal *entity.Signal) error) (*entity.Signal, error) {
	var updated entity.Signal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var signal entity.Signal
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&signal, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSignalNotFound
			}
			return err
		}

		version := signal.Version
		if err := fn(&signal); err != nil {
			return err
		}
		signal.Version = version + 1

		res := tx.Model(&signal).
			Where("version = ?", version).
			Select("*").
			Omit("id", "created_at").
			Updates(&signal)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrConcurrentUpdate
		}
		updated = signal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *signalRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.Signal{}).
		Where("id = ? AND sent_at IS NULL", id).
		UpdateColumn("sent_at", at).Error
}

type aggregateRow struct {
	Total           int64
	Executed        int64
	Wins            int64
	Losses          int64
	WinPercentSum   decimal.Decimal
	LossPercentSum  decimal.Decimal
	TotalProfitLoss decimal.Decimal
}

func (r *signalRepository) Aggregate(ctx context.Context, userID int64) (*dto.SignalAggregate, error) {
	var row aggregateRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE user_action = 'bought') AS executed,
			COUNT(*) FILTER (WHERE status = 'win') AS wins,
			COUNT(*) FILTER (WHERE status = 'lose') AS losses,
			COALESCE(SUM(profit_loss_percent) FILTER (WHERE status = 'win'), 0) AS win_percent_sum,
			COALESCE(SUM(profit_loss_percent) FILTER (WHERE status = 'lose'), 0) AS loss_percent_sum,
			COALESCE(SUM(trade_amount * profit_loss_percent / 100)
				FILTER (WHERE status IN ('win', 'lose', 'closed')), 0) AS total_profit_loss
		FROM signals
		WHERE user_id = ?`, userID).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate signals: %w", err)
	}
	return &dto.SignalAggregate{
		Total:           row.Total,
		Executed:        row.Executed,
		Wins:            row.Wins,
		Losses:          row.Losses,
		WinPercentSum:   row.WinPercentSum,
		LossPercentSum:  row.LossPercentSum,
		TotalProfitLoss: row.TotalProfitLoss,
	}, nil
}
