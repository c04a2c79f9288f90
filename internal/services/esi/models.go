package esi

// MarketOrder is one open order from the paginated region order book.
type MarketOrder struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int64   `json:"type_id"`
	IsBuyOrder   bool    `json:"is_buy_order"`
	Price        float64 `json:"price"`
	VolumeRemain int64   `json:"volume_remain"`
	VolumeTotal  int64   `json:"volume_total"`
	MinVolume    int64   `json:"min_volume"`
	LocationID   int64   `json:"location_id"`
	Duration     int     `json:"duration"`
	Range        string  `json:"range"`
	Issued       string  `json:"issued"`
}

// TypeInfo is the /universe/types/{id}/ payload.
type TypeInfo struct {
	TypeID         int64   `json:"type_id"`
	Name           string  `json:"name"`
	GroupID        int64   `json:"group_id"`
	Volume         float64 `json:"volume"`
	PackagedVolume float64 `json:"packaged_volume"`
	PortionSize    int     `json:"portion_size"`
	IconID         int64   `json:"icon_id"`
	Published      bool    `json:"published"`
}

// GroupInfo is the /universe/groups/{id}/ payload; the category id lives here,
// one hop away from the type itself.
type GroupInfo struct {
	GroupID    int64  `json:"group_id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

// HistoryDay is one daily aggregate from /markets/{region_id}/history/.
// Volume is not broken down by side upstream.
type HistoryDay struct {
	Date       string  `json:"date"` // "2006-01-02"
	Average    float64 `json:"average"`
	Highest    float64 `json:"highest"`
	Lowest     float64 `json:"lowest"`
	OrderCount int64   `json:"order_count"`
	Volume     int64   `json:"volume"`
}
