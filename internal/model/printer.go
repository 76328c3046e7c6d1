package model

import (
	"net"
	"strconv"
)

const DefaultPrinterPort = 9100

const (
	PrinterTypeText   = "text"
	PrinterTypeRaster = "raster"
)

// PrinterInfo identifies the target printer of a print request.
type PrinterInfo struct {
	ID      string `json:"id,omitempty"`
	IP      string `json:"ip"`
	Port    int    `json:"port,omitempty"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	Model   string `json:"model,omitempty"`
	Columns int    `json:"columns,omitempty"`
}

// Address returns the host:port the printer listens on.
func (p *PrinterInfo) Address() string {
	port := p.Port
	if port <= 0 {
		port = DefaultPrinterPort
	}
	return net.JoinHostPort(p.IP, strconv.Itoa(port))
}

// Label is used as the log prefix for the printer.
func (p *PrinterInfo) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.IP
}

type RestaurantInfo struct {
	Name           string `json:"name,omitempty"`
	RestaurantID   string `json:"restaurantId,omitempty"`
	RestaurantName string `json:"restaurantName,omitempty"`
	LocationID     string `json:"locationId,omitempty"`
	LocationName   string `json:"locationName,omitempty"`
	Address        string `json:"address,omitempty"`
	Header         string `json:"header,omitempty"`
	Footer         string `json:"footer,omitempty"`
}

// DisplayName prefers the restaurant name and falls back to the short name.
func (r *RestaurantInfo) DisplayName() string {
	if r.RestaurantName != "" {
		return r.RestaurantName
	}
	return r.Name
}
