package model

import "strings"

// --- Order Structures (Matching the bridge JSON) ---

type Order struct {
	ID              string    `json:"_id"`
	OrderCode       string    `json:"orderCode,omitempty"`
	PaymentID       string    `json:"paymentId,omitempty"`
	RestaurantID    string    `json:"restaurantId,omitempty"`
	LocationID      string    `json:"locationId,omitempty"`
	LocationSlug    string    `json:"locationSlug,omitempty"`
	Meta            *Meta     `json:"meta,omitempty"`
	Customer        *Customer `json:"customer,omitempty"`
	Origin          *Origin   `json:"origin,omitempty"`
	Items           []Item    `json:"items"`
	Status          string    `json:"status,omitempty"`
	StartedAt       string    `json:"startedAt,omitempty"`
	EndedAt         string    `json:"endedAt,omitempty"`
	TotalPriceCents int64     `json:"totalPriceCents"`
	GetSms          bool      `json:"getSms,omitempty"`
}

type Meta struct {
	CorrelationID string `json:"correlationId,omitempty"`
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Origin struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Item struct {
	ID          string     `json:"id,omitempty"`
	MenuItemID  string     `json:"menuItemId,omitempty"`
	Name        string     `json:"name"`
	PriceCents  int64      `json:"priceCents"`
	Notes       string     `json:"notes,omitempty"`
	Modifiers   []Modifier `json:"modifiers"`
	Variants    []Variant  `json:"variants"`
	StationTags []string   `json:"stationTags,omitempty"`
	StartedAt   string     `json:"startedAt,omitempty"`
	CompletedAt string     `json:"completedAt,omitempty"`
}

type Modifier struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Options []Option `json:"options"`
}

type Option struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
}

type Variant struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
}

// ShortCode is the last four characters of the order id, upper-cased,
// as shown to kitchen staff.
func (o *Order) ShortCode() string {
	r := []rune(o.ID)
	if len(r) > 4 {
		r = r[len(r)-4:]
	}
	return strings.ToUpper(string(r))
}
