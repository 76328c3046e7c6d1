package model

// Trigger sources seen on the bridge. Only SourceSocket is known to redeliver.
const (
	SourceSocket = "socket"
	SourceManual = "manual"
	SourceKafka  = "kafka"
	SourceHTTP   = "http"
)

// PrintRequest is the envelope handed over by every trigger.
type PrintRequest struct {
	Source         string          `json:"source"`
	Order          *Order          `json:"order"`
	RestaurantInfo *RestaurantInfo `json:"restaurantInfo"`
	PrinterInfo    *PrinterInfo    `json:"printerInfo"`
}

// OrderID returns the order id or "" when the order is missing.
func (r *PrintRequest) OrderID() string {
	if r == nil || r.Order == nil {
		return ""
	}
	return r.Order.ID
}
