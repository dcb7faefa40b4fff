package locations

import (
	"github.com/ipfs-shipyard/peer-locations/pkg/geoip"
)

// Locations returns the resolved location of every peer that has one. When
// several addresses resolved the lowest address wins.
func Locations(s Store) map[string]geoip.Location {
	locs := map[string]geoip.Location{}
	for peerID, addrs := range s.addrs {
		for _, addr := range addrs {
			rec := s.records[Key{PeerID: peerID, Addr: addr}]
			if rec.State != Resolved {
				continue
			}
			locs[peerID] = rec.Data
			break
		}
	}
	return locs
}

// PeerLocation is a visible peer joined with its resolved location.
type PeerLocation struct {
	Coordinates *[2]float64 `json:"coordinates,omitempty"`
	PeerID      string      `json:"peer_id"`
	Address     string      `json:"address"`
	Location    string      `json:"location,omitempty"`
	FlagCode    string      `json:"flag_code,omitempty"`
}

// SwarmRows joins the visible peers with resolved locations. Peers without a
// location are kept with the location fields empty.
func SwarmRows(peers []Peer, locs map[string]geoip.Location) []PeerLocation {
	rows := make([]PeerLocation, 0, len(peers))
	for _, p := range peers {
		row := PeerLocation{
			PeerID:  p.ID,
			Address: p.Addr,
		}
		loc, ok := locs[p.ID]
		if ok {
			row.Location = loc.String()
			row.FlagCode = loc.CountryCode
			if loc.HasCoordinates() {
				row.Coordinates = &[2]float64{loc.Longitude, loc.Latitude}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Coordinates returns the [longitude, latitude] pairs of rows that have them.
func Coordinates(rows []PeerLocation) [][2]float64 {
	coords := [][2]float64{}
	for _, row := range rows {
		if row.Coordinates == nil {
			continue
		}
		coords = append(coords, *row.Coordinates)
	}
	return coords
}
