package domain

import "sort"

// ValuationMethod determines the order in which stock rows are consumed.
type ValuationMethod string

const (
	ValuationFIFO ValuationMethod = "FIFO"
	ValuationLIFO ValuationMethod = "LIFO"
	ValuationFEFO ValuationMethod = "FEFO"
	ValuationWAC  ValuationMethod = "WAC"
)

// IsValid checks whether the method is one of the supported values
func (m ValuationMethod) IsValid() bool {
	switch m {
	case ValuationFIFO, ValuationLIFO, ValuationFEFO, ValuationWAC:
		return true
	}
	return false
}

func (m ValuationMethod) String() string {
	return string(m)
}

// Comparator returns the strict-weak ordering used to walk candidate rows
// under this method. WAC affects cost accounting only, so its consumption
// order is FIFO.
func (m ValuationMethod) Comparator() func(a, b *StockRow) bool {
	switch m {
	case ValuationLIFO:
		return func(a, b *StockRow) bool {
			// Newest first; unsequenced rows sort last.
			if a.HasSequence() != b.HasSequence() {
				return a.HasSequence()
			}
			return a.FIFOSequence > b.FIFOSequence
		}
	case ValuationFEFO:
		return func(a, b *StockRow) bool {
			// Soonest expiry first; rows without expiry sort last.
			switch {
			case a.ExpiryDate == nil && b.ExpiryDate == nil:
				return a.FIFOSequence < b.FIFOSequence
			case a.ExpiryDate == nil:
				return false
			case b.ExpiryDate == nil:
				return true
			case !a.ExpiryDate.Equal(*b.ExpiryDate):
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
			return a.FIFOSequence < b.FIFOSequence
		}
	default: // FIFO and WAC
		return func(a, b *StockRow) bool {
			// Oldest first; unsequenced rows sort last.
			if a.HasSequence() != b.HasSequence() {
				return a.HasSequence()
			}
			return a.FIFOSequence < b.FIFOSequence
		}
	}
}

// SortCandidates orders rows in-place for consumption under method. When
// preferredBinID is set, rows in that bin come first, each partition keeping
// the method's internal order.
func SortCandidates(rows []*StockRow, method ValuationMethod, preferredBinID string) {
	less := method.Comparator()
	sort.SliceStable(rows, func(i, j int) bool {
		if preferredBinID != "" {
			iPref := rows[i].BinID == preferredBinID
			jPref := rows[j].BinID == preferredBinID
			if iPref != jPref {
				return iPref
			}
		}
		return less(rows[i], rows[j])
	})
}

// SortChannelCandidates orders channel pool rows under method. Preferred-bin
// bias does not apply to channel pools.
func SortChannelCandidates(rows []*ChannelStockRow, method ValuationMethod) {
	less := method.Comparator()
	sort.SliceStable(rows, func(i, j int) bool {
		return less(&rows[i].StockRow, &rows[j].StockRow)
	})
}
