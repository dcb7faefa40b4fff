package geoip

import (
	"context"
	"errors"
	"net/netip"
)

// ErrNotFound is returned when the lookup service has no data for an address.
var ErrNotFound = errors.New("no location data for address")

// Location is the geolocation payload for a single address.
type Location struct {
	CountryName string  `json:"country_name,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	RegionCode  string  `json:"region_code,omitempty"`
	City        string  `json:"city,omitempty"`
	PostalCode  string  `json:"postal_code,omitempty"`
	Planet      string  `json:"planet,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}

// IsZero returns true when no field is set.
func (l Location) IsZero() bool {
	return l == Location{}
}

// HasCoordinates returns true when a latitude or longitude is set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// String formats the location as "City, Country" or just the country name.
func (l Location) String() string {
	if l.City != "" && l.CountryName != "" {
		return l.City + ", " + l.CountryName
	}
	return l.CountryName
}

// Lookuper resolves a single IPv4 address to a location. Implementations make
// exactly one attempt per call.
type Lookuper interface {
	Lookup(ctx context.Context, ip netip.Addr) (Location, error)
}
