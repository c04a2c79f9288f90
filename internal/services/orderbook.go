package services

import (
	"eve-trader/internal/services/esi"
)

// PriceAggregate is the collapsed order book for one item type: best bid,
// best ask and summed remaining volume per side. A zero price means that side
// of the book has no orders, not a real price.
type PriceAggregate struct {
	BuyPrice   float64 `json:"buy_price"`
	SellPrice  float64 `json:"sell_price"`
	BuyVolume  int64   `json:"buy_volume"`
	SellVolume int64   `json:"sell_volume"`
}

// AggregateOrders collapses a raw order list into per-type aggregates.
// Best buy is the maximum buy price, best sell the minimum sell price; volume
// sums cover every order on the side, not just the best one. The result is
// independent of input ordering.
func AggregateOrders(orders []esi.MarketOrder) map[int64]PriceAggregate {
	aggregates := make(map[int64]PriceAggregate)
	for _, order := range orders {
		agg := aggregates[order.TypeID]
		if order.IsBuyOrder {
			if order.Price > agg.BuyPrice {
				agg.BuyPrice = order.Price
			}
			agg.BuyVolume += order.VolumeRemain
		} else {
			if agg.SellPrice == 0 || order.Price < agg.SellPrice {
				agg.SellPrice = order.Price
			}
			agg.SellVolume += order.VolumeRemain
		}
		aggregates[order.TypeID] = agg
	}
	return aggregates
}
