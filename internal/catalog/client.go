// Package catalog is the read-only client for the catalog collaborator. Menu
// prices and availability are always re-fetched here; client-supplied prices
// are never trusted.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type MenuItem struct {
	ID           string  `json:"id"`
	RestaurantID string  `json:"restaurantId"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Available    bool    `json:"available"`
}

type Restaurant struct {
	ID       string `json:"id"`
	IsActive bool   `json:"isActive"`
}

type Gateway interface {
	MenuItem(ctx context.Context, id string) (MenuItem, error)
	Restaurant(ctx context.Context, id string) (Restaurant, error)
}

// ErrNotFound is returned when the catalog has no record for the identifier.
var ErrNotFound = fmt.Errorf("catalog: not found")

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) MenuItem(ctx context.Context, id string) (MenuItem, error) {
	var item MenuItem
	if err := c.get(ctx, "/api/menu-items/"+id, &item); err != nil {
		return MenuItem{}, err
	}
	return item, nil
}

func (c *Client) Restaurant(ctx context.Context, id string) (Restaurant, error) {
	var rest Restaurant
	if err := c.get(ctx, "/api/restaurants/"+id, &rest); err != nil {
		return Restaurant{}, err
	}
	return rest, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("catalog returned %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
