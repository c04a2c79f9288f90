package services

import (
	"math/rand"
	"testing"

	"eve-trader/internal/services/esi"
)

func TestAggregateOrders_BestPricesAndVolumes(t *testing.T) {
	orders := []esi.MarketOrder{
		{TypeID: 34, IsBuyOrder: true, Price: 4.5, VolumeRemain: 100},
		{TypeID: 34, IsBuyOrder: true, Price: 5.2, VolumeRemain: 200},
		{TypeID: 34, IsBuyOrder: true, Price: 3.1, VolumeRemain: 50},
		{TypeID: 34, IsBuyOrder: false, Price: 6.0, VolumeRemain: 80},
		{TypeID: 34, IsBuyOrder: false, Price: 5.8, VolumeRemain: 40},
		{TypeID: 35, IsBuyOrder: false, Price: 12.0, VolumeRemain: 10},
	}

	aggregates := AggregateOrders(orders)

	if len(aggregates) != 2 {
		t.Fatalf("got %d types, want 2", len(aggregates))
	}

	tritanium := aggregates[34]
	if tritanium.BuyPrice != 5.2 {
		t.Errorf("BuyPrice = %v, want 5.2 (max of buy orders)", tritanium.BuyPrice)
	}
	if tritanium.SellPrice != 5.8 {
		t.Errorf("SellPrice = %v, want 5.8 (min of sell orders)", tritanium.SellPrice)
	}
	if tritanium.BuyVolume != 350 {
		t.Errorf("BuyVolume = %d, want 350 (sum across all buy orders)", tritanium.BuyVolume)
	}
	if tritanium.SellVolume != 120 {
		t.Errorf("SellVolume = %d, want 120 (sum across all sell orders)", tritanium.SellVolume)
	}
}

func TestAggregateOrders_OneSidedBook(t *testing.T) {
	tests := []struct {
		name   string
		orders []esi.MarketOrder
		want   PriceAggregate
	}{
		{
			name: "buy orders only",
			orders: []esi.MarketOrder{
				{TypeID: 34, IsBuyOrder: true, Price: 100, VolumeRemain: 50},
			},
			want: PriceAggregate{BuyPrice: 100, SellPrice: 0, BuyVolume: 50, SellVolume: 0},
		},
		{
			name: "sell orders only",
			orders: []esi.MarketOrder{
				{TypeID: 34, IsBuyOrder: false, Price: 120, VolumeRemain: 30},
			},
			want: PriceAggregate{BuyPrice: 0, SellPrice: 120, BuyVolume: 0, SellVolume: 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateOrders(tt.orders)[34]
			if got != tt.want {
				t.Errorf("aggregate = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggregateOrders_EmptyInput(t *testing.T) {
	aggregates := AggregateOrders(nil)
	if len(aggregates) != 0 {
		t.Errorf("got %d types for empty input, want 0", len(aggregates))
	}
}

func TestAggregateOrders_OrderIndependent(t *testing.T) {
	orders := []esi.MarketOrder{
		{TypeID: 34, IsBuyOrder: true, Price: 4.5, VolumeRemain: 100},
		{TypeID: 34, IsBuyOrder: true, Price: 5.2, VolumeRemain: 200},
		{TypeID: 34, IsBuyOrder: false, Price: 6.0, VolumeRemain: 80},
		{TypeID: 35, IsBuyOrder: true, Price: 1.0, VolumeRemain: 5},
		{TypeID: 36, IsBuyOrder: false, Price: 9.9, VolumeRemain: 7},
	}
	want := AggregateOrders(orders)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := make([]esi.MarketOrder, len(orders))
		copy(shuffled, orders)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := AggregateOrders(shuffled)
		if len(got) != len(want) {
			t.Fatalf("permutation %d: got %d types, want %d", i, len(got), len(want))
		}
		for typeID, agg := range want {
			if got[typeID] != agg {
				t.Errorf("permutation %d: type %d = %+v, want %+v", i, typeID, got[typeID], agg)
			}
		}
	}
}

func TestAggregateOrders_ZeroIsSentinelNotPrice(t *testing.T) {
	// a sell order at a price above zero must still become the best ask even
	// though the aggregate starts at the zero sentinel
	orders := []esi.MarketOrder{
		{TypeID: 34, IsBuyOrder: false, Price: 0.01, VolumeRemain: 1},
	}
	got := AggregateOrders(orders)[34]
	if got.SellPrice != 0.01 {
		t.Errorf("SellPrice = %v, want 0.01", got.SellPrice)
	}
}
