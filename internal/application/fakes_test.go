package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/logging"
)

func newTestLogger() *logging.Logger {
	return logging.New(&logging.Config{
		Level:       logging.LevelError,
		ServiceName: "test",
		Output:      io.Discard,
	})
}

// fakeTxRunner executes the function directly. The fakes mutate in place, so
// tests asserting post-state must drive flows that commit.
type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// errTxTransient marks a failure the driver would retry the transaction for.
var errTxTransient = errors.New("transient transaction error")

// transientTxRunner re-runs the callback whenever it fails with
// errTxTransient, the way the driver re-runs transactions after a transient
// abort. attempts counts invocations.
type transientTxRunner struct {
	attempts int
}

func (r *transientTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	for {
		r.attempts++
		err := fn(ctx)
		if !errors.Is(err, errTxTransient) {
			return err
		}
	}
}

// capturePublisher records every published event.
type capturePublisher struct {
	keys   []string
	events []domain.DomainEvent
	err    error
}

func (p *capturePublisher) Publish(ctx context.Context, key string, events []domain.DomainEvent) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.events = append(p.events, events...)
	return nil
}

// fakeStockRepo is a slice-backed in-memory ledger. The fail* counters make
// the next n calls of the matching method fail, modelling lost races and
// transient aborts.
type fakeStockRepo struct {
	rows []*domain.StockRow

	failMerges       int
	failConsumes     int
	failReleases     int
	failSetSequences int
}

func (r *fakeStockRepo) add(row *domain.StockRow) *domain.StockRow {
	if row.ID.IsZero() {
		row.ID = primitive.NewObjectID()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC().Add(time.Duration(len(r.rows)) * time.Millisecond)
	}
	r.rows = append(r.rows, row)
	return row
}

func (r *fakeStockRepo) byID(id primitive.ObjectID) *domain.StockRow {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (r *fakeStockRepo) InsertOrMerge(ctx context.Context, row *domain.StockRow) (*domain.StockRow, error) {
	if r.failMerges > 0 {
		r.failMerges--
		return nil, errTxTransient
	}
	key := row.Key()
	for _, existing := range r.rows {
		if existing.Key() == key {
			if err := existing.Merge(row.Quantity); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}
	return r.add(row), nil
}

func (r *fakeStockRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.StockRow, error) {
	if row := r.byID(id); row != nil {
		return row, nil
	}
	return nil, domain.ErrStockRowNotFound
}

func (r *fakeStockRepo) FindByKey(ctx context.Context, key domain.StockKey) (*domain.StockRow, error) {
	for _, row := range r.rows {
		if row.Key() == key {
			return row, nil
		}
	}
	return nil, domain.ErrStockRowNotFound
}

func (r *fakeStockRepo) FindCandidates(ctx context.Context, companyID, skuID, locationID string) ([]*domain.StockRow, error) {
	var out []*domain.StockRow
	for _, row := range r.rows {
		if row.CompanyID == companyID && row.SKUID == skuID && row.LocationID == locationID && row.Available() > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeStockRepo) FindActive(ctx context.Context, companyID, skuID, locationID string) ([]*domain.StockRow, error) {
	var out []*domain.StockRow
	for _, row := range r.rows {
		if row.CompanyID == companyID && row.SKUID == skuID && row.LocationID == locationID && row.Quantity > 0 {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeStockRepo) Reserve(ctx context.Context, id primitive.ObjectID, n int) error {
	row := r.byID(id)
	if row == nil {
		return domain.ErrStockRowNotFound
	}
	return row.Reserve(n)
}

func (r *fakeStockRepo) Release(ctx context.Context, id primitive.ObjectID, n int) error {
	if r.failReleases > 0 {
		r.failReleases--
		return errTxTransient
	}
	row := r.byID(id)
	if row == nil {
		return domain.ErrStockRowNotFound
	}
	row.Release(n)
	return nil
}

func (r *fakeStockRepo) Consume(ctx context.Context, id primitive.ObjectID, pickedQty, allocatedQty int) error {
	if r.failConsumes > 0 {
		r.failConsumes--
		return errTxTransient
	}
	row := r.byID(id)
	if row == nil {
		return domain.ErrStockRowNotFound
	}
	return row.Consume(pickedQty, allocatedQty)
}

func (r *fakeStockRepo) AddQuantity(ctx context.Context, id primitive.ObjectID, n int) error {
	row := r.byID(id)
	if row == nil {
		return domain.ErrStockRowNotFound
	}
	return row.Merge(n)
}

func (r *fakeStockRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	for i, row := range r.rows {
		if row.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrStockRowNotFound
}

func (r *fakeStockRepo) MaxSequence(ctx context.Context, companyID, skuID, locationID string) (int, error) {
	max := 0
	for _, row := range r.rows {
		if row.CompanyID == companyID && row.SKUID == skuID && row.LocationID == locationID && row.FIFOSequence > max {
			max = row.FIFOSequence
		}
	}
	return max, nil
}

func (r *fakeStockRepo) SetSequence(ctx context.Context, id primitive.ObjectID, seq int) error {
	if r.failSetSequences > 0 {
		r.failSetSequences--
		return fmt.Errorf("%w: fifoSequence %d already assigned", domain.ErrConflict, seq)
	}
	row := r.byID(id)
	if row == nil {
		return domain.ErrStockRowNotFound
	}
	// Mirrors the partial unique index on assigned sequences.
	if seq > 0 {
		for _, other := range r.rows {
			if other.ID != id && other.CompanyID == row.CompanyID && other.SKUID == row.SKUID &&
				other.LocationID == row.LocationID && other.FIFOSequence == seq {
				return fmt.Errorf("%w: fifoSequence %d already assigned", domain.ErrConflict, seq)
			}
		}
	}
	row.FIFOSequence = seq
	return nil
}

func (r *fakeStockRepo) ClearSequences(ctx context.Context, companyID, skuID, locationID string) error {
	for _, row := range r.rows {
		if row.CompanyID == companyID && row.SKUID == skuID && row.LocationID == locationID {
			row.FIFOSequence = 0
		}
	}
	return nil
}

func (r *fakeStockRepo) ListSequencePairs(ctx context.Context, companyID string) ([]domain.SequencePair, error) {
	seen := map[domain.SequencePair]bool{}
	var pairs []domain.SequencePair
	for _, row := range r.rows {
		if row.CompanyID != companyID {
			continue
		}
		pair := domain.SequencePair{SKUID: row.SKUID, LocationID: row.LocationID}
		if !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

func (r *fakeStockRepo) SummarizeBinOccupancy(ctx context.Context, companyID, locationID, skuID string) (map[string]domain.BinOccupancy, error) {
	out := map[string]domain.BinOccupancy{}
	for _, row := range r.rows {
		if row.CompanyID != companyID || row.LocationID != locationID {
			continue
		}
		occ := out[row.BinID]
		if row.SKUID == skuID {
			occ.SameSKUQty += row.Quantity
		} else {
			occ.OtherSKUQty += row.Quantity
		}
		out[row.BinID] = occ
	}
	return out, nil
}

// fakeChannelRepo is the channel pool counterpart of fakeStockRepo.
type fakeChannelRepo struct {
	rows []*domain.ChannelStockRow
}

func (r *fakeChannelRepo) add(row *domain.ChannelStockRow) *domain.ChannelStockRow {
	if row.ID.IsZero() {
		row.ID = primitive.NewObjectID()
	}
	r.rows = append(r.rows, row)
	return row
}

func (r *fakeChannelRepo) byID(id primitive.ObjectID) *domain.ChannelStockRow {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (r *fakeChannelRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.ChannelStockRow, error) {
	if row := r.byID(id); row != nil {
		return row, nil
	}
	return nil, domain.ErrStockRowNotFound
}

func (r *fakeChannelRepo) FindCandidates(ctx context.Context, companyID, skuID, locationID, channel string) ([]*domain.ChannelStockRow, error) {
	var out []*domain.ChannelStockRow
	for _, row := range r.rows {
		if row.CompanyID == companyID && row.SKUID == skuID && row.LocationID == locationID &&
			row.Channel == channel && row.Available() > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeChannelRepo) Reserve(ctx context.Context, id primitive.ObjectID, n int) error {
	row := r.byID(id)
	if row == nil {
		return domain.ErrStockRowNotFound
	}
	return row.Reserve(n)
}

func (r *fakeChannelRepo) Release(ctx context.Context, id primitive.ObjectID, n int) error {
	row := r.byID(id)
	if row == nil {
		return domain.ErrStockRowNotFound
	}
	row.Release(n)
	return nil
}

func (r *fakeChannelRepo) Consume(ctx context.Context, id primitive.ObjectID, pickedQty, allocatedQty int) error {
	row := r.byID(id)
	if row == nil {
		return domain.ErrStockRowNotFound
	}
	return row.Consume(pickedQty, allocatedQty)
}

// fakeAllocationRepo stores allocations and issues sequential numbers.
// Reads return snapshots and Update commits back guarded on the status the
// caller read, like the real repository. failInserts forces the next n
// Insert calls to report a write conflict; afterFind, when set, runs after
// each successful read to let a test interleave a racing writer.
type fakeAllocationRepo struct {
	allocs      []*domain.Allocation
	counter     int
	insertCalls int
	failInserts int
	afterFind   func()
}

func (r *fakeAllocationRepo) setStatus(id primitive.ObjectID, status domain.AllocationStatus) {
	for _, a := range r.allocs {
		if a.ID == id {
			a.Status = status
		}
	}
}

func (r *fakeAllocationRepo) NextAllocationNo(ctx context.Context, companyID string) (string, error) {
	r.counter++
	return fmt.Sprintf("ALLOC-%08d", r.counter), nil
}

func (r *fakeAllocationRepo) Insert(ctx context.Context, a *domain.Allocation) error {
	r.insertCalls++
	if r.failInserts > 0 {
		r.failInserts--
		return fmt.Errorf("%w: duplicate allocation number", domain.ErrConflict)
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	r.allocs = append(r.allocs, a)
	return nil
}

func (r *fakeAllocationRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Allocation, error) {
	for _, a := range r.allocs {
		if a.ID == id {
			snapshot := *a
			if r.afterFind != nil {
				r.afterFind()
			}
			return &snapshot, nil
		}
	}
	return nil, domain.ErrAllocationNotFound
}

func (r *fakeAllocationRepo) FindActiveByOrder(ctx context.Context, companyID, orderID string) ([]*domain.Allocation, error) {
	var out []*domain.Allocation
	for _, a := range r.allocs {
		if a.CompanyID == companyID && a.OrderID == orderID && a.IsActive() {
			snapshot := *a
			out = append(out, &snapshot)
		}
	}
	return out, nil
}

func (r *fakeAllocationRepo) FindActiveByWave(ctx context.Context, companyID, waveID string) ([]*domain.Allocation, error) {
	var out []*domain.Allocation
	for _, a := range r.allocs {
		if a.CompanyID == companyID && a.WaveID == waveID && a.IsActive() {
			snapshot := *a
			out = append(out, &snapshot)
		}
	}
	return out, nil
}

func (r *fakeAllocationRepo) Update(ctx context.Context, a *domain.Allocation, from domain.AllocationStatus) error {
	for i, existing := range r.allocs {
		if existing.ID == a.ID {
			if existing.Status != from {
				return fmt.Errorf("%w: allocation %s left status %s", domain.ErrConflict, a.AllocationNo, from)
			}
			committed := *a
			r.allocs[i] = &committed
			return nil
		}
	}
	return domain.ErrAllocationNotFound
}

// fakeTaskRepo stores putaway tasks. Reads return snapshots and Update
// commits back guarded on the status the caller read; afterFind, when set,
// runs after each successful read to let a test interleave a racing writer.
type fakeTaskRepo struct {
	tasks     []*domain.PutawayTask
	counter   int
	afterFind func()
}

func (r *fakeTaskRepo) setStatus(id primitive.ObjectID, status domain.PutawayStatus) {
	for _, t := range r.tasks {
		if t.ID == id {
			t.Status = status
		}
	}
}

func (r *fakeTaskRepo) NextTaskNo(ctx context.Context, companyID string, day time.Time) (string, error) {
	r.counter++
	return fmt.Sprintf("PUT-%s-%04d", day.UTC().Format("20060102"), r.counter), nil
}

func (r *fakeTaskRepo) Insert(ctx context.Context, task *domain.PutawayTask) error {
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *fakeTaskRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.PutawayTask, error) {
	for _, t := range r.tasks {
		if t.ID == id {
			snapshot := *t
			if r.afterFind != nil {
				r.afterFind()
			}
			return &snapshot, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (r *fakeTaskRepo) FindByTaskNo(ctx context.Context, companyID, taskNo string) (*domain.PutawayTask, error) {
	for _, t := range r.tasks {
		if t.CompanyID == companyID && t.TaskNo == taskNo {
			snapshot := *t
			if r.afterFind != nil {
				r.afterFind()
			}
			return &snapshot, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *domain.PutawayTask, from domain.PutawayStatus) error {
	for i, t := range r.tasks {
		if t.ID == task.ID {
			if t.Status != from {
				return fmt.Errorf("%w: task %s left status %s", domain.ErrConflict, task.TaskNo, from)
			}
			committed := *task
			r.tasks[i] = &committed
			return nil
		}
	}
	return domain.ErrTaskNotFound
}

func (r *fakeTaskRepo) Summary(ctx context.Context, companyID, locationID string) (*domain.PutawaySummary, error) {
	summary := &domain.PutawaySummary{}
	for _, t := range r.tasks {
		if t.CompanyID != companyID {
			continue
		}
		if locationID != "" && t.LocationID != locationID {
			continue
		}
		switch t.Status {
		case domain.PutawayStatusPending:
			summary.Pending++
		case domain.PutawayStatusAssigned:
			summary.Assigned++
		case domain.PutawayStatusInProgress:
			summary.InProgress++
		case domain.PutawayStatusCompleted:
			if t.CompletedAt != nil {
				summary.CompletedToday++
			}
		}
	}
	return summary, nil
}

// fakeBinRepo stores bins with a capacity-guarded AddUnits.
type fakeBinRepo struct {
	bins []*domain.Bin
}

func (r *fakeBinRepo) FindByBinID(ctx context.Context, companyID, binID string) (*domain.Bin, error) {
	for _, b := range r.bins {
		if b.CompanyID == companyID && b.BinID == binID {
			return b, nil
		}
	}
	return nil, domain.ErrBinNotFound
}

func (r *fakeBinRepo) FindByLocation(ctx context.Context, companyID, locationID string) ([]*domain.Bin, error) {
	var out []*domain.Bin
	for _, b := range r.bins {
		if b.CompanyID == companyID && b.LocationID == locationID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PickSequence != out[j].PickSequence {
			return out[i].PickSequence < out[j].PickSequence
		}
		return out[i].BinID < out[j].BinID
	})
	return out, nil
}

func (r *fakeBinRepo) AddUnits(ctx context.Context, companyID, binID string, n int) error {
	for _, b := range r.bins {
		if b.CompanyID == companyID && b.BinID == binID {
			if b.MaxUnits != nil && b.CurrentUnits+n > *b.MaxUnits {
				return fmt.Errorf("%w: bin %s", domain.ErrBinCapacityExceeded, binID)
			}
			b.CurrentUnits += n
			return nil
		}
	}
	return domain.ErrBinNotFound
}

// fakeReceiptRepo serves goods receipts by number.
type fakeReceiptRepo struct {
	receipts []*domain.GoodsReceipt
}

func (r *fakeReceiptRepo) FindByGRNo(ctx context.Context, companyID, grNo string) (*domain.GoodsReceipt, error) {
	for _, gr := range r.receipts {
		if gr.CompanyID == companyID && gr.GRNo == grNo {
			return gr, nil
		}
	}
	return nil, domain.ErrGoodsReceiptNotFound
}

// fakeRefRepo resolves order channels and valuation overrides from maps.
type fakeRefRepo struct {
	orderChannels map[string]string
	skuMethods    map[string]domain.ValuationMethod
	locMethods    map[string]domain.ValuationMethod
	companyMethod domain.ValuationMethod
}

func (r *fakeRefRepo) OrderChannel(ctx context.Context, companyID, orderID string) (string, error) {
	ch, ok := r.orderChannels[orderID]
	if !ok {
		return "", domain.ErrOrderNotFound
	}
	return ch, nil
}

func (r *fakeRefRepo) SKUValuation(ctx context.Context, companyID, skuID string) (domain.ValuationMethod, error) {
	return r.skuMethods[skuID], nil
}

func (r *fakeRefRepo) LocationValuation(ctx context.Context, companyID, locationID string) (domain.ValuationMethod, error) {
	return r.locMethods[locationID], nil
}

func (r *fakeRefRepo) CompanyValuation(ctx context.Context, companyID string) (domain.ValuationMethod, error) {
	return r.companyMethod, nil
}
