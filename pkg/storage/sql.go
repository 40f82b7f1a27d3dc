package storage

import (
	"fmt"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// SQLStorage implements the core.TradeStorage interface using a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// FromSQL creates a new SQL storage instance
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(&core.Trade{})
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{
		db: db,
	}, nil
}

// SaveTrade inserts a journal event, or updates it when the simulation
// replays an event that already carries a persisted ID.
func (s *SQLStorage) SaveTrade(trade *core.Trade) error {
	if trade.ID != 0 {
		var existing core.Trade
		result := s.db.First(&existing, trade.ID)
		if result.Error == nil {
			result = s.db.Save(trade)
			if result.Error != nil {
				return fmt.Errorf("failed to update trade: %w", result.Error)
			}
			return nil
		}
	}

	result := s.db.Create(trade)
	if result.Error != nil {
		return fmt.Errorf("failed to create trade: %w", result.Error)
	}

	return nil
}

// Trades retrieves journal events from the SQL database based on provided filters
func (s *SQLStorage) Trades(filters ...core.TradeFilter) ([]*core.Trade, error) {
	var trades []*core.Trade

	result := s.db.Order("date").Find(&trades)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to fetch trades: %w", result.Error)
	}

	// Apply filters in memory
	// Note: This could be optimized by translating filters to SQL WHERE clauses
	filtered := lo.Filter(trades, func(trade *core.Trade, _ int) bool {
		for _, filter := range filters {
			if !filter(*trade) {
				return false
			}
		}
		return true
	})

	return filtered, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}

// WithTransaction executes the given function within a database transaction
func (s *SQLStorage) WithTransaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

// TradesWithQuery allows for more customized querying using GORM's query builder
func (s *SQLStorage) TradesWithQuery(query func(*gorm.DB) *gorm.DB) ([]*core.Trade, error) {
	var trades []*core.Trade

	result := query(s.db).Find(&trades)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to execute query: %w", result.Error)
	}

	return trades, nil
}
