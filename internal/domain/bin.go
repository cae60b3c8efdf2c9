package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ZoneType classifies a warehouse zone
type ZoneType string

const (
	ZoneTypePick    ZoneType = "PICK"
	ZoneTypeBulk    ZoneType = "BULK"
	ZoneTypeReserve ZoneType = "RESERVE"
	ZoneTypeStaging ZoneType = "STAGING"
)

// Zone is a group of bins sharing type and environment. Lower priority
// values are preferred putaway targets.
type Zone struct {
	ZoneID                string   `bson:"zoneId" json:"zoneId"`
	Name                  string   `bson:"name,omitempty" json:"name,omitempty"`
	Type                  ZoneType `bson:"type" json:"type"`
	TemperatureControlled bool     `bson:"temperatureControlled" json:"temperatureControlled"`
	Priority              int      `bson:"priority" json:"priority"`
}

// Bin is a physical storage address.
type Bin struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BinID      string             `bson:"binId" json:"binId"`
	CompanyID  string             `bson:"companyId" json:"companyId"`
	LocationID string             `bson:"locationId" json:"locationId"`
	Zone       Zone               `bson:"zone" json:"zone"`

	MaxUnits  *int     `bson:"maxUnits,omitempty" json:"maxUnits,omitempty"`
	MaxWeight *float64 `bson:"maxWeight,omitempty" json:"maxWeight,omitempty"`
	MaxVolume *float64 `bson:"maxVolume,omitempty" json:"maxVolume,omitempty"`

	CurrentUnits int `bson:"currentUnits" json:"currentUnits"`
	PickSequence int `bson:"pickSequence" json:"pickSequence"`

	IsPickFace bool `bson:"isPickFace" json:"isPickFace"`
	IsReserve  bool `bson:"isReserve" json:"isReserve"`
	IsStaging  bool `bson:"isStaging" json:"isStaging"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasCapacityFor checks the unit capacity gate for an incoming quantity
func (b *Bin) HasCapacityFor(qty int) bool {
	if b.MaxUnits == nil {
		return true
	}
	return *b.MaxUnits-b.CurrentUnits >= qty
}

// BinOccupancy summarises the stock presently in a bin relative to one SKU.
type BinOccupancy struct {
	SameSKUQty  int
	OtherSKUQty int
}

// BinCandidate pairs a bin with its occupancy for scoring
type BinCandidate struct {
	Bin       *Bin
	Occupancy BinOccupancy
}

// BinSuggestion is one scored putaway target
type BinSuggestion struct {
	BinID  string  `json:"binId"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

const maxBinSuggestions = 10

// SuggestBins scores candidate bins for putting away qty units of a SKU and
// returns at most ten suggestions, best first.
func SuggestBins(candidates []BinCandidate, qty int, preferSameSKU, preferEmpty bool) []BinSuggestion {
	suggestions := make([]BinSuggestion, 0, len(candidates))

	for _, c := range candidates {
		score, reason, ok := scoreBin(c, qty, preferSameSKU, preferEmpty)
		if !ok {
			continue
		}
		suggestions = append(suggestions, BinSuggestion{
			BinID:  c.Bin.BinID,
			Score:  score,
			Reason: reason,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > maxBinSuggestions {
		suggestions = suggestions[:maxBinSuggestions]
	}
	return suggestions
}

func scoreBin(c BinCandidate, qty int, preferSameSKU, preferEmpty bool) (float64, string, bool) {
	bin := c.Bin
	score := 50.0
	var reasons []string

	if !bin.HasCapacityFor(qty) {
		return 0, "insufficient capacity", false
	}

	if bin.MaxUnits != nil && *bin.MaxUnits > 0 {
		utilisation := float64(bin.CurrentUnits) / float64(*bin.MaxUnits)
		if preferEmpty {
			bonus := (1 - utilisation) * 20
			score += bonus
			reasons = append(reasons, fmt.Sprintf("low fill +%.1f", bonus))
		} else if utilisation >= 0.4 && utilisation <= 0.8 {
			score += 15
			reasons = append(reasons, "optimal fill +15")
		}
	}

	switch {
	case c.Occupancy.SameSKUQty > 0:
		if preferSameSKU {
			score += 30
			reasons = append(reasons, "same SKU +30")
		}
	case c.Occupancy.OtherSKUQty > 0:
		score -= 10
		reasons = append(reasons, "mixed SKU -10")
	default:
		score += 10
		reasons = append(reasons, "empty bin +10")
	}

	switch bin.Zone.Type {
	case ZoneTypePick:
		score += 10
		reasons = append(reasons, "pick zone +10")
	case ZoneTypeBulk:
		score += 5
		reasons = append(reasons, "bulk zone +5")
	case ZoneTypeReserve:
		score += 3
		reasons = append(reasons, "reserve zone +3")
	}

	if bin.Zone.TemperatureControlled {
		score += 5
		reasons = append(reasons, "temperature controlled +5")
	}

	if bonus := 10 - bin.Zone.Priority; bonus > 0 {
		score += float64(bonus)
		reasons = append(reasons, fmt.Sprintf("zone priority +%d", bonus))
	}

	if bonus := 10 - float64(bin.PickSequence)/100; bonus > 0 {
		score += bonus
		reasons = append(reasons, fmt.Sprintf("pick proximity +%.1f", bonus))
	}

	if bin.IsStaging || bin.Zone.Type == ZoneTypeStaging {
		score -= 20
		reasons = append(reasons, "staging -20")
	}

	return score, strings.Join(reasons, ", "), true
}
