package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/allocation-service/internal/domain"
)

func newTestSequencer(stock *fakeStockRepo) *Sequencer {
	return NewSequencer(stock, fakeTxRunner{}, newTestLogger())
}

func seedSequencedRow(stock *fakeStockRepo, sku, loc, bin string, qty, seq int, createdAt time.Time) *domain.StockRow {
	return stock.add(&domain.StockRow{
		CompanyID:    testCompany,
		SKUID:        sku,
		LocationID:   loc,
		BinID:        bin,
		Quantity:     qty,
		FIFOSequence: seq,
		CreatedAt:    createdAt,
	})
}

func TestNextSequence(t *testing.T) {
	stock := &fakeStockRepo{}
	seq := newTestSequencer(stock)
	now := time.Now().UTC()

	// Empty ledger starts at 1.
	next, err := seq.NextSequence(context.Background(), testCompany, testSKU, testLocation)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	seedSequencedRow(stock, testSKU, testLocation, "B1", 5, 4, now)
	// Another pair does not leak into this one.
	seedSequencedRow(stock, "SKU-B", testLocation, "B1", 5, 40, now)

	next, err = seq.NextSequence(context.Background(), testCompany, testSKU, testLocation)
	require.NoError(t, err)
	assert.Equal(t, 5, next)
}

func TestAssignSequenceIsIdempotent(t *testing.T) {
	stock := &fakeStockRepo{}
	seq := newTestSequencer(stock)
	now := time.Now().UTC()

	seedSequencedRow(stock, testSKU, testLocation, "B1", 5, 2, now)
	fresh := seedSequencedRow(stock, testSKU, testLocation, "B2", 5, 0, now)

	got, err := seq.AssignSequence(context.Background(), fresh)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, 3, fresh.FIFOSequence)

	// A second call keeps the assigned value.
	got, err = seq.AssignSequence(context.Background(), fresh)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestReassignOrdersByCreation(t *testing.T) {
	stock := &fakeStockRepo{}
	seq := newTestSequencer(stock)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	newest := seedSequencedRow(stock, testSKU, testLocation, "B3", 5, 1, base.Add(2*time.Hour))
	oldest := seedSequencedRow(stock, testSKU, testLocation, "B1", 5, 9, base)
	middle := seedSequencedRow(stock, testSKU, testLocation, "B2", 5, 5, base.Add(time.Hour))
	// Depleted rows fall out of the renumbering and lose their stale sequence.
	depleted := seedSequencedRow(stock, testSKU, testLocation, "B4", 0, 2, base)

	count, err := seq.Reassign(context.Background(), testCompany, testSKU, testLocation)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.Equal(t, 1, oldest.FIFOSequence)
	assert.Equal(t, 2, middle.FIFOSequence)
	assert.Equal(t, 3, newest.FIFOSequence)
	assert.Zero(t, depleted.FIFOSequence)
}

func TestAssignSequenceConflictSurfaces(t *testing.T) {
	stock := &fakeStockRepo{failSetSequences: 1}
	seq := newTestSequencer(stock)
	row := stock.add(&domain.StockRow{
		CompanyID:  testCompany,
		SKUID:      testSKU,
		LocationID: testLocation,
		BinID:      "B1",
		Quantity:   5,
	})

	// Losing the sequence race surfaces as a conflict for the enclosing
	// transaction to retry.
	_, err := seq.AssignSequence(context.Background(), row)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Zero(t, row.FIFOSequence)
}

func TestBulkReassignCoversAllPairs(t *testing.T) {
	stock := &fakeStockRepo{}
	seq := newTestSequencer(stock)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	a2 := seedSequencedRow(stock, testSKU, testLocation, "B2", 5, 7, base.Add(time.Hour))
	a1 := seedSequencedRow(stock, testSKU, testLocation, "B1", 5, 9, base)
	b1 := seedSequencedRow(stock, "SKU-B", "LOC-2", "B1", 5, 4, base)

	total, err := seq.BulkReassign(context.Background(), testCompany)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	assert.Equal(t, 1, a1.FIFOSequence)
	assert.Equal(t, 2, a2.FIFOSequence)
	assert.Equal(t, 1, b1.FIFOSequence)
}
