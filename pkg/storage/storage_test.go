package storage

import (
	"testing"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journalDay(offset int) time.Time {
	return time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func seedJournal(t *testing.T, s core.TradeStorage) {
	t.Helper()
	trades := []*core.Trade{
		{
			Symbol: "SPX", Date: journalDay(0), Action: core.ActionSellPut,
			OptionType: core.OptionPut, Side: core.SideShort,
			Strike: 400, Contracts: 2, Premium: 1.50, CashFlow: 300,
		},
		{
			Symbol: "SPX", Date: journalDay(3), Action: core.ActionExpire,
			OptionType: core.OptionPut, Side: core.SideShort,
			Strike: 400, Contracts: 2, RealizedPnL: 300, Terminal: true,
		},
		{
			Symbol: "NDX", Date: journalDay(1), Action: core.ActionSellCall,
			OptionType: core.OptionCall, Side: core.SideShort,
			Strike: 18000, Contracts: 1, Premium: 12, CashFlow: 1200,
		},
	}
	for _, trade := range trades {
		require.NoError(t, s.SaveTrade(trade))
	}
}

func TestBuntStorageSaveAndLoad(t *testing.T) {
	s, err := FromMemory()
	require.NoError(t, err)
	defer s.Close()

	seedJournal(t, s)

	trades, err := s.Trades()
	require.NoError(t, err)
	require.Len(t, trades, 3)

	// date_index orders events chronologically across symbols
	assert.Equal(t, journalDay(0), trades[0].Date)
	assert.Equal(t, journalDay(1), trades[1].Date)
	assert.Equal(t, journalDay(3), trades[2].Date)
}

func TestBuntStorageAssignsMissingIDs(t *testing.T) {
	s, err := FromMemory()
	require.NoError(t, err)
	defer s.Close()

	first := &core.Trade{Symbol: "SPX", Date: journalDay(0), Action: core.ActionSellPut}
	second := &core.Trade{Symbol: "SPX", Date: journalDay(1), Action: core.ActionBuyClose}
	require.NoError(t, s.SaveTrade(first))
	require.NoError(t, s.SaveTrade(second))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestBuntStorageKeepsCallerIDs(t *testing.T) {
	s, err := FromMemory()
	require.NoError(t, err)
	defer s.Close()

	trade := &core.Trade{ID: 42, Symbol: "SPX", Date: journalDay(0), Action: core.ActionSellPut}
	require.NoError(t, s.SaveTrade(trade))
	assert.Equal(t, int64(42), trade.ID)

	trades, err := s.Trades()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(42), trades[0].ID)
}

func TestBuntStorageFilters(t *testing.T) {
	s, err := FromMemory()
	require.NoError(t, err)
	defer s.Close()

	seedJournal(t, s)

	spx, err := s.Trades(core.WithSymbol("SPX"))
	require.NoError(t, err)
	assert.Len(t, spx, 2)

	terminal, err := s.Trades(core.WithSymbol("SPX"), core.WithTerminal())
	require.NoError(t, err)
	require.Len(t, terminal, 1)
	assert.Equal(t, core.ActionExpire, terminal[0].Action)
	assert.Equal(t, 300.0, terminal[0].RealizedPnL)

	none, err := s.Trades(core.WithAction(core.ActionRoll))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBuntStorageOverwritesSameID(t *testing.T) {
	s, err := FromMemory()
	require.NoError(t, err)
	defer s.Close()

	trade := &core.Trade{ID: 7, Symbol: "SPX", Date: journalDay(0), Action: core.ActionSellPut, Premium: 1.50}
	require.NoError(t, s.SaveTrade(trade))

	trade.Premium = 1.75
	require.NoError(t, s.SaveTrade(trade))

	trades, err := s.Trades()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 1.75, trades[0].Premium)
}
