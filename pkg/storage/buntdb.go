// Package storage persists simulation trade journals: an embedded BuntDB
// JSON store for local runs and a GORM-backed SQL store for shared setups.
package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/tidwall/buntdb"
)

// BuntStorage implements the core.TradeStorage interface using BuntDB
type BuntStorage struct {
	lastID int64
	db     *buntdb.DB
}

// FromMemory creates an in-memory storage
func FromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:")
}

// FromFile creates a file-based storage
func FromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file)
}

// NewBuntStorage creates a new BuntDB storage instance
func NewBuntStorage(sourceFile string) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	err = db.CreateIndex("date_index", "*", buntdb.IndexJSON("date"))
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntStorage{
		db: db,
	}, nil
}

// getID generates a unique ID for journal events
func (b *BuntStorage) getID() int64 {
	return atomic.AddInt64(&b.lastID, 1)
}

// SaveTrade stores one journal event. Events arriving without an ID are
// assigned one.
func (b *BuntStorage) SaveTrade(trade *core.Trade) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if trade.ID == 0 {
			trade.ID = b.getID()
		}

		content, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}

		_, _, err = tx.Set(strconv.FormatInt(trade.ID, 10), string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store trade: %w", err)
		}

		return nil
	})
}

// Trades retrieves journal events in date order, filtered in memory.
func (b *BuntStorage) Trades(filters ...core.TradeFilter) ([]*core.Trade, error) {
	trades := make([]*core.Trade, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		err := tx.Ascend("date_index", func(_, value string) bool {
			var trade core.Trade
			err := json.Unmarshal([]byte(value), &trade)
			if err != nil {
				log.Printf("Failed to unmarshal trade: %v", err)
				return true // Continue iteration
			}

			for _, filter := range filters {
				if !filter(trade) {
					return true // Skip this trade and continue iteration
				}
			}

			trades = append(trades, &trade)
			return true
		})

		if err != nil {
			return fmt.Errorf("failed to iterate over trades: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return trades, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
