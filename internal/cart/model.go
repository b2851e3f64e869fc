package cart

import "time"

type Item struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

// Cart is the staging area for one customer's selection at one restaurant.
// Prices are not stored here; they are snapshotted from the catalog at
// placement time.
type Cart struct {
	ID           string    `json:"cartId"`
	CustomerID   string    `json:"customerId"`
	RestaurantID string    `json:"restaurantId"`
	Items        []Item    `json:"items"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
