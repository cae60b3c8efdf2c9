package domain

// ChannelUnallocated is the reserved pool name for stock not yet assigned
// to any sales channel.
const ChannelUnallocated = "UNALLOCATED"

// ChannelStockRow shadows a ledger row for a single sales channel. Channel
// rows carry their own reservations; the underlying ledger row's quantity is
// the sum of its channel shadows when partitioning is in use.
type ChannelStockRow struct {
	StockRow `bson:",inline"`

	Channel string `bson:"channel" json:"channel"`
}
