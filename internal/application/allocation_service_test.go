package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/allocation-service/internal/domain"
	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
)

const (
	testCompany  = "CO1"
	testLocation = "LOC-1"
	testSKU      = "SKU-A"
)

type allocFixture struct {
	stock     *fakeStockRepo
	channels  *fakeChannelRepo
	allocs    *fakeAllocationRepo
	refs      *fakeRefRepo
	publisher *capturePublisher
	svc       *AllocationService
}

func newAllocFixture() *allocFixture {
	return newAllocFixtureWithTx(fakeTxRunner{})
}

func newAllocFixtureWithTx(tx domain.TxRunner) *allocFixture {
	f := &allocFixture{
		stock:     &fakeStockRepo{},
		channels:  &fakeChannelRepo{},
		allocs:    &fakeAllocationRepo{},
		refs:      &fakeRefRepo{},
		publisher: &capturePublisher{},
	}
	f.svc = NewAllocationService(
		f.stock, f.channels, f.allocs, f.refs,
		tx, f.publisher, newTestLogger(), nil,
		domain.ValuationFIFO,
	)
	return f
}

func (f *allocFixture) seedRow(t *testing.T, bin string, qty, seq int) *domain.StockRow {
	t.Helper()
	row, err := domain.NewStockRow(domain.StockKey{
		CompanyID:  testCompany,
		SKUID:      testSKU,
		LocationID: testLocation,
		BinID:      bin,
	}, qty)
	require.NoError(t, err)
	row.FIFOSequence = seq
	return f.stock.add(row)
}

func (f *allocFixture) seedChannelRow(t *testing.T, channel, bin string, qty, seq int) *domain.ChannelStockRow {
	t.Helper()
	base, err := domain.NewStockRow(domain.StockKey{
		CompanyID:  testCompany,
		SKUID:      testSKU,
		LocationID: testLocation,
		BinID:      bin,
	}, qty)
	require.NoError(t, err)
	base.FIFOSequence = seq
	return f.channels.add(&domain.ChannelStockRow{StockRow: *base, Channel: channel})
}

func (f *allocFixture) allocate(t *testing.T, req AllocationRequest) *AllocationResultDTO {
	t.Helper()
	result, err := f.svc.Allocate(context.Background(), testCompany, req, "user-1")
	require.NoError(t, err)
	return result
}

func TestAllocateConsolidatesAcrossRows(t *testing.T) {
	f := newAllocFixture()
	r1 := f.seedRow(t, "B1", 5, 1)
	r2 := f.seedRow(t, "B2", 10, 2)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 7})

	assert.True(t, result.Success)
	assert.Equal(t, 7, result.Allocated)
	assert.Zero(t, result.Shortfall)
	require.Len(t, result.Allocations, 2)

	// Oldest sequence drains first, the remainder comes off the next row.
	assert.Equal(t, "B1", result.Allocations[0].BinID)
	assert.Equal(t, 5, result.Allocations[0].AllocatedQty)
	assert.Equal(t, "B2", result.Allocations[1].BinID)
	assert.Equal(t, 2, result.Allocations[1].AllocatedQty)

	assert.Equal(t, 5, r1.Quantity)
	assert.Equal(t, 5, r1.ReservedQty)
	assert.Equal(t, 10, r2.Quantity)
	assert.Equal(t, 2, r2.ReservedQty)

	assert.Equal(t, "ALLOC-00000001", result.Allocations[0].AllocationNo)
	assert.Equal(t, "ALLOC-00000002", result.Allocations[1].AllocationNo)
}

func TestAllocateCascadesThroughChannelPools(t *testing.T) {
	f := newAllocFixture()
	f.refs.orderChannels = map[string]string{"ORD-9": "SHOP"}
	orderPool := f.seedChannelRow(t, "SHOP", "B1", 3, 1)
	commonPool := f.seedChannelRow(t, domain.ChannelUnallocated, "B1", 2, 2)
	ledger := f.seedRow(t, "B2", 10, 3)

	result := f.allocate(t, AllocationRequest{
		SKUID: testSKU, LocationID: testLocation, RequiredQty: 6, OrderID: "ORD-9",
	})

	assert.True(t, result.Success)
	require.Len(t, result.Allocations, 3)
	assert.Equal(t, "SHOP", result.Allocations[0].Channel)
	assert.Equal(t, 3, result.Allocations[0].AllocatedQty)
	assert.Equal(t, domain.ChannelUnallocated, result.Allocations[1].Channel)
	assert.Equal(t, 2, result.Allocations[1].AllocatedQty)
	assert.Empty(t, result.Allocations[2].Channel)
	assert.Equal(t, 1, result.Allocations[2].AllocatedQty)

	assert.Equal(t, 3, orderPool.ReservedQty)
	assert.Equal(t, 2, commonPool.ReservedQty)
	assert.Equal(t, 1, ledger.ReservedQty)
}

func TestAllocateUnknownOrderFallsThroughToLedger(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 5, 1)

	result := f.allocate(t, AllocationRequest{
		SKUID: testSKU, LocationID: testLocation, RequiredQty: 5, OrderID: "ORD-MISSING",
	})

	assert.True(t, result.Success)
	require.Len(t, result.Allocations, 1)
	assert.Empty(t, result.Allocations[0].Channel)
}

func TestAllocateShortfallIsAResultNotAnError(t *testing.T) {
	f := newAllocFixture()
	row := f.seedRow(t, "B1", 2, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 5})

	assert.False(t, result.Success)
	assert.Equal(t, 5, result.Requested)
	assert.Equal(t, 2, result.Allocated)
	assert.Equal(t, 3, result.Shortfall)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, 2, result.Allocations[0].AllocatedQty)
	assert.Equal(t, 2, row.ReservedQty)
}

func TestAllocateNothingAvailable(t *testing.T) {
	f := newAllocFixture()

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 3})

	assert.False(t, result.Success)
	assert.Zero(t, result.Allocated)
	assert.Equal(t, 3, result.Shortfall)
	assert.Empty(t, result.Allocations)
}

func TestAllocateValidation(t *testing.T) {
	f := newAllocFixture()

	_, err := f.svc.Allocate(context.Background(), testCompany, AllocationRequest{SKUID: testSKU, LocationID: testLocation}, "user-1")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)

	_, err = f.svc.Allocate(context.Background(), testCompany, AllocationRequest{
		SKUID: testSKU, LocationID: testLocation, RequiredQty: 1, ValuationMethod: "AVCO",
	}, "user-1")
	appErr, ok = apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func TestAllocatePolicyResolution(t *testing.T) {
	f := newAllocFixture()
	f.refs.skuMethods = map[string]domain.ValuationMethod{testSKU: domain.ValuationLIFO}
	f.refs.locMethods = map[string]domain.ValuationMethod{testLocation: domain.ValuationFEFO}
	f.seedRow(t, "B1", 5, 1)
	f.seedRow(t, "B2", 5, 2)

	// SKU override wins over the location override: LIFO drains the highest
	// sequence first.
	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 5})
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "B2", result.Allocations[0].BinID)
	assert.Equal(t, "LIFO", result.Allocations[0].ValuationMethod)

	// An explicit method overrides every policy level.
	result = f.allocate(t, AllocationRequest{
		SKUID: testSKU, LocationID: testLocation, RequiredQty: 5, ValuationMethod: domain.ValuationFIFO,
	})
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "B1", result.Allocations[0].BinID)
}

func TestAllocateCompanyDefaultApplies(t *testing.T) {
	f := newAllocFixture()
	f.refs.companyMethod = domain.ValuationLIFO
	f.seedRow(t, "B1", 5, 1)
	f.seedRow(t, "B2", 5, 2)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 5})
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "B2", result.Allocations[0].BinID)
}

func TestAllocatePreferredBinFirst(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 5, 1)
	preferred := f.seedRow(t, "B2", 5, 2)

	result := f.allocate(t, AllocationRequest{
		SKUID: testSKU, LocationID: testLocation, RequiredQty: 5, PreferredBinID: "B2",
	})

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "B2", result.Allocations[0].BinID)
	assert.Equal(t, 5, preferred.ReservedQty)
}

func TestAllocateRetriesOnNumberConflict(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 10, 1)
	f.allocs.failInserts = 1

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 2})

	assert.True(t, result.Success)
	assert.Equal(t, 2, f.allocs.insertCalls)
}

func TestAllocateConflictExhaustsRetries(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 100, 1)
	f.allocs.failInserts = 10

	_, err := f.svc.Allocate(context.Background(), testCompany, AllocationRequest{
		SKUID: testSKU, LocationID: testLocation, RequiredQty: 2,
	}, "user-1")

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, 3, f.allocs.insertCalls)
}

func TestBulkAllocateInheritsEnvelope(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 10, 1)
	f.stock.add(&domain.StockRow{
		CompanyID: testCompany, SKUID: "SKU-B", LocationID: testLocation,
		BinID: "B2", Quantity: 3, FIFOSequence: 1,
	})

	result, err := f.svc.BulkAllocate(context.Background(), testCompany, BulkAllocationRequest{
		LocationID: testLocation,
		OrderID:    "ORD-7",
		Items: []AllocationRequest{
			{SKUID: testSKU, RequiredQty: 4},
			{SKUID: "SKU-B", RequiredQty: 5},
		},
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 9, result.Requested)
	assert.Equal(t, 7, result.Allocated)
	assert.Equal(t, 2, result.Shortfall)
	assert.False(t, result.Success)
	require.Len(t, result.Lines, 2)
	assert.True(t, result.Lines[0].Success)
	assert.False(t, result.Lines[1].Success)

	for _, line := range result.Lines {
		for _, alloc := range line.Allocations {
			assert.Equal(t, "ORD-7", alloc.OrderID)
			assert.Equal(t, testLocation, alloc.LocationID)
		}
	}
}

func TestBulkAllocateRejectsEmptyItems(t *testing.T) {
	f := newAllocFixture()
	_, err := f.svc.BulkAllocate(context.Background(), testCompany, BulkAllocationRequest{LocationID: testLocation}, "user-1")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func TestBulkAllocateRecordsFailedLines(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 10, 1)

	result, err := f.svc.BulkAllocate(context.Background(), testCompany, BulkAllocationRequest{
		LocationID: testLocation,
		Items: []AllocationRequest{
			{SKUID: testSKU, RequiredQty: 4},
			{SKUID: "SKU-B", RequiredQty: 5, ValuationMethod: "AVCO"},
		},
	}, "user-1")
	require.NoError(t, err)

	// The bad line is reported in place; the good line's commit stands.
	assert.False(t, result.Success)
	require.Len(t, result.Lines, 2)
	assert.True(t, result.Lines[0].Success)
	assert.Equal(t, 4, result.Lines[0].Allocated)
	assert.False(t, result.Lines[1].Success)
	assert.NotEmpty(t, result.Lines[1].Error)
	assert.Equal(t, 5, result.Lines[1].Shortfall)

	assert.Equal(t, 9, result.Requested)
	assert.Equal(t, 4, result.Allocated)
	assert.Equal(t, 5, result.Shortfall)
	require.Len(t, f.allocs.allocs, 1)
}

func TestDeallocateReleasesReservation(t *testing.T) {
	f := newAllocFixture()
	row := f.seedRow(t, "B1", 10, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 4})
	require.Equal(t, 4, row.ReservedQty)
	allocID := result.Allocations[0].ID

	ok, err := f.svc.Deallocate(context.Background(), testCompany, allocID, "user-2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, row.ReservedQty)
	assert.Equal(t, 10, row.Quantity)

	// Repeat deallocation is a no-op, not an error.
	ok, err = f.svc.Deallocate(context.Background(), testCompany, allocID, "user-2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, row.ReservedQty)
}

func TestDeallocateChannelAllocation(t *testing.T) {
	f := newAllocFixture()
	pool := f.seedChannelRow(t, domain.ChannelUnallocated, "B1", 5, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 3})
	require.Equal(t, 3, pool.ReservedQty)

	ok, err := f.svc.Deallocate(context.Background(), testCompany, result.Allocations[0].ID, "user-2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, pool.ReservedQty)
}

func TestDeallocatePickedAllocationRejected(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 10, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 4})
	allocID := result.Allocations[0].ID
	_, err := f.svc.ConfirmPick(context.Background(), testCompany, ConfirmPickCommand{AllocationID: allocID, PickedQty: 4}, "picker-1")
	require.NoError(t, err)

	_, err = f.svc.Deallocate(context.Background(), testCompany, allocID, "user-2")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidState, appErr.Code)
}

func TestDeallocateLosesRaceToPick(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 10, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 4})
	allocID := f.allocs.allocs[0].ID

	// A pick commits between the cancel's read and its write.
	f.allocs.afterFind = func() {
		f.allocs.afterFind = nil
		f.allocs.setStatus(allocID, domain.AllocationStatusPicked)
	}

	_, err := f.svc.Deallocate(context.Background(), testCompany, result.Allocations[0].ID, "user-2")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)

	// The committed pick is never overwritten by the stale cancel.
	assert.Equal(t, domain.AllocationStatusPicked, f.allocs.allocs[0].Status)
}

func TestDeallocateSurvivesTransactionRetry(t *testing.T) {
	tx := &transientTxRunner{}
	f := newAllocFixtureWithTx(tx)
	row := f.seedRow(t, "B1", 10, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 4})
	f.stock.failReleases = 1

	// The first attempt aborts before releasing; the re-run reloads the
	// allocation from committed state and succeeds.
	ok, err := f.svc.Deallocate(context.Background(), testCompany, result.Allocations[0].ID, "user-2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, tx.attempts)

	assert.Zero(t, row.ReservedQty)
	assert.Equal(t, 10, row.Quantity)
	assert.Equal(t, domain.AllocationStatusCancelled, f.allocs.allocs[0].Status)
}

func TestDeallocateWrongCompany(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 10, 1)
	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 4})

	_, err := f.svc.Deallocate(context.Background(), "CO2", result.Allocations[0].ID, "user-2")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestDeallocateByOrderPartialSuccess(t *testing.T) {
	f := newAllocFixture()
	row := f.seedRow(t, "B1", 20, 1)

	f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 3, OrderID: "ORD-1"})
	f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 4, OrderID: "ORD-1"})
	f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 5, OrderID: "ORD-2"})
	require.Equal(t, 12, row.ReservedQty)

	count, err := f.svc.DeallocateByOrder(context.Background(), testCompany, "ORD-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 5, row.ReservedQty)
}

func TestDeallocateByWave(t *testing.T) {
	f := newAllocFixture()
	row := f.seedRow(t, "B1", 20, 1)

	f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 6, WaveID: "WAVE-1"})
	f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 2, WaveID: "WAVE-1"})

	count, err := f.svc.DeallocateByWave(context.Background(), testCompany, "WAVE-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Zero(t, row.ReservedQty)
}

func TestConfirmPickShortPickAbsorbsShrinkage(t *testing.T) {
	f := newAllocFixture()
	row := f.seedRow(t, "B1", 10, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 4})
	require.Equal(t, 4, row.ReservedQty)

	dto, err := f.svc.ConfirmPick(context.Background(), testCompany, ConfirmPickCommand{
		AllocationID: result.Allocations[0].ID, PickedQty: 3,
	}, "picker-1")
	require.NoError(t, err)

	assert.Equal(t, 3, dto.PickedQty)
	assert.Equal(t, string(domain.AllocationStatusPicked), dto.Status)

	// Three units left the building, the fourth reservation unit is freed.
	assert.Equal(t, 7, row.Quantity)
	assert.Zero(t, row.ReservedQty)
}

func TestConfirmPickClampsOverpick(t *testing.T) {
	f := newAllocFixture()
	row := f.seedRow(t, "B1", 10, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 4})

	dto, err := f.svc.ConfirmPick(context.Background(), testCompany, ConfirmPickCommand{
		AllocationID: result.Allocations[0].ID, PickedQty: 9,
	}, "picker-1")
	require.NoError(t, err)

	assert.Equal(t, 4, dto.PickedQty)
	assert.Equal(t, 6, row.Quantity)
	assert.Zero(t, row.ReservedQty)
}

func TestConfirmPickSurvivesTransactionRetry(t *testing.T) {
	tx := &transientTxRunner{}
	f := newAllocFixtureWithTx(tx)
	row := f.seedRow(t, "B1", 10, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 4})
	f.stock.failConsumes = 1

	// The first attempt aborts before consuming; the re-run reloads the
	// allocation from committed state, so the pick is applied exactly once.
	dto, err := f.svc.ConfirmPick(context.Background(), testCompany, ConfirmPickCommand{
		AllocationID: result.Allocations[0].ID, PickedQty: 3,
	}, "picker-1")
	require.NoError(t, err)
	assert.Equal(t, 3, tx.attempts)

	assert.Equal(t, 3, dto.PickedQty)
	assert.Equal(t, string(domain.AllocationStatusPicked), dto.Status)
	assert.Equal(t, 7, row.Quantity)
	assert.Zero(t, row.ReservedQty)
}

func TestConfirmPickFromChannelPool(t *testing.T) {
	f := newAllocFixture()
	pool := f.seedChannelRow(t, domain.ChannelUnallocated, "B1", 5, 1)

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 2})

	_, err := f.svc.ConfirmPick(context.Background(), testCompany, ConfirmPickCommand{
		AllocationID: result.Allocations[0].ID, PickedQty: 2,
	}, "picker-1")
	require.NoError(t, err)

	assert.Equal(t, 3, pool.Quantity)
	assert.Zero(t, pool.ReservedQty)
}

func TestCheckAvailabilityIgnoresChannelPartitioning(t *testing.T) {
	f := newAllocFixture()
	row := f.seedRow(t, "B1", 10, 1)
	require.NoError(t, row.Reserve(4))
	f.seedChannelRow(t, "SHOP", "B1", 99, 1)

	dto, err := f.svc.CheckAvailability(context.Background(), testCompany, testSKU, testLocation, 5)
	require.NoError(t, err)

	assert.Equal(t, 6, dto.Available)
	assert.Equal(t, 10, dto.Total)
	assert.True(t, dto.Sufficient)

	dto, err = f.svc.CheckAvailability(context.Background(), testCompany, testSKU, testLocation, 7)
	require.NoError(t, err)
	assert.False(t, dto.Sufficient)
}

func TestAllocatePublishesCreatedEvents(t *testing.T) {
	f := newAllocFixture()
	f.seedRow(t, "B1", 5, 1)
	f.seedRow(t, "B2", 5, 2)

	f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 8})

	require.Len(t, f.publisher.events, 2)
	for _, event := range f.publisher.events {
		assert.Equal(t, "allocation.created", event.EventType())
	}
	assert.Equal(t, testCompany+":"+testSKU, f.publisher.keys[0])
}

func TestAllocateIdempotenceWithDeallocate(t *testing.T) {
	f := newAllocFixture()
	row := f.seedRow(t, "B1", 10, 1)
	before := row.ReservedQty

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 6})
	for _, alloc := range result.Allocations {
		ok, err := f.svc.Deallocate(context.Background(), testCompany, alloc.ID, "user-1")
		require.NoError(t, err)
		require.True(t, ok)
	}

	assert.Equal(t, before, row.ReservedQty)
	assert.Equal(t, 10, row.Quantity)
}

func TestAllocationSnapshotsSurviveRowChanges(t *testing.T) {
	f := newAllocFixture()
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	row := f.seedRow(t, "B1", 10, 3)
	row.BatchNo = "BATCH-7"
	row.ExpiryDate = &expiry

	result := f.allocate(t, AllocationRequest{SKUID: testSKU, LocationID: testLocation, RequiredQty: 2})

	row.BinID = "B9"
	row.FIFOSequence = 99

	alloc := result.Allocations[0]
	assert.Equal(t, "B1", alloc.BinID)
	assert.Equal(t, "BATCH-7", alloc.BatchNo)
	assert.Equal(t, 3, alloc.FIFOSequence)
	require.NotNil(t, alloc.ExpiryDate)
	assert.True(t, expiry.Equal(*alloc.ExpiryDate))
}
