package ledger

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"pair-trade-tracker-go/internal/models"
)

// Store is the durable ledger of pairs and trades. Every mutation is written
// through immediately; any failure of the underlying database surfaces as a
// *StorageError and callers must assume none of the operation is visible.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an opened database connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// CreatePair inserts a new pair and assigns its ID.
func (s *Store) CreatePair(ctx context.Context, pair *models.Pair) error {
	if err := s.db.WithContext(ctx).Create(pair).Error; err != nil {
		return storageErr("create pair", err)
	}
	return nil
}

// GetPair fetches one pair by ID, returning (nil, nil) when absent.
func (s *Store) GetPair(ctx context.Context, id uint) (*models.Pair, error) {
	var pair models.Pair
	err := s.db.WithContext(ctx).First(&pair, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get pair", err)
	}
	return &pair, nil
}

// ListPairs returns all pairs ordered by name.
func (s *Store) ListPairs(ctx context.Context) ([]models.Pair, error) {
	var pairs []models.Pair
	if err := s.db.WithContext(ctx).Order("pair_name asc").Find(&pairs).Error; err != nil {
		return nil, storageErr("list pairs", err)
	}
	return pairs, nil
}

// SavePair upserts a pair record; the ID must already be assigned.
func (s *Store) SavePair(ctx context.Context, pair *models.Pair) error {
	if err := s.db.WithContext(ctx).Save(pair).Error; err != nil {
		return storageErr("save pair", err)
	}
	return nil
}

// DeletePairCascade removes a pair and every trade that references it in a
// single transaction.
func (s *Store) DeletePairCascade(ctx context.Context, pairID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("pair_id = ?", pairID).Delete(&models.Trade{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Pair{}, pairID).Error
	})
	if err != nil {
		return storageErr("delete pair", err)
	}
	return nil
}

// CreateTrade inserts a new trade and assigns its ID.
func (s *Store) CreateTrade(ctx context.Context, trade *models.Trade) error {
	if err := s.db.WithContext(ctx).Create(trade).Error; err != nil {
		return storageErr("create trade", err)
	}
	return nil
}

// GetTrade fetches one trade by ID, returning (nil, nil) when absent.
func (s *Store) GetTrade(ctx context.Context, id uint) (*models.Trade, error) {
	var trade models.Trade
	err := s.db.WithContext(ctx).First(&trade, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get trade", err)
	}
	return &trade, nil
}

// SaveTrade upserts a trade record; the ID must already be assigned.
func (s *Store) SaveTrade(ctx context.Context, trade *models.Trade) error {
	if err := s.db.WithContext(ctx).Save(trade).Error; err != nil {
		return storageErr("save trade", err)
	}
	return nil
}

// DeleteTrade removes a whole trade, both legs, atomically.
func (s *Store) DeleteTrade(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Unscoped().Delete(&models.Trade{}, id).Error; err != nil {
		return storageErr("delete trade", err)
	}
	return nil
}

// TradesForPair returns the pair's trades in ledger order: ascending by open
// leg date, with insertion order (the auto-assigned ID) as the stable
// tie-break for equal dates. Dates are stored as YYYY-MM-DD, so the textual
// sort is chronological.
func (s *Store) TradesForPair(ctx context.Context, pairID uint) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Where("pair_id = ?", pairID).
		Order("open_date asc, id asc").
		Find(&trades).Error
	if err != nil {
		return nil, storageErr("trades for pair", err)
	}
	return trades, nil
}

// ClearTradesForPair removes every trade of the pair, leaving the pair itself.
func (s *Store) ClearTradesForPair(ctx context.Context, pairID uint) error {
	if err := s.db.WithContext(ctx).Unscoped().Where("pair_id = ?", pairID).Delete(&models.Trade{}).Error; err != nil {
		return storageErr("clear trades", err)
	}
	return nil
}

// BulkAddTrades inserts a batch of trades in one transaction, all or nothing.
func (s *Store) BulkAddTrades(ctx context.Context, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range trades {
			if err := tx.Create(&trades[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("bulk add trades", err)
	}
	return nil
}

// PurgeOrphanTrades deletes every trade whose pair no longer exists and
// returns how many were removed. This is the startup health check's repair
// step: orphans are a data inconsistency, not a validation error, so the
// purge reports rather than blocks.
func (s *Store) PurgeOrphanTrades(ctx context.Context) (int64, error) {
	pairIDs := s.db.Model(&models.Pair{}).Select("id")
	res := s.db.WithContext(ctx).Unscoped().
		Where("pair_id NOT IN (?)", pairIDs).
		Delete(&models.Trade{})
	if res.Error != nil {
		return 0, storageErr("purge orphan trades", res.Error)
	}
	return res.RowsAffected, nil
}
