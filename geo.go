package tcd

import "github.com/golang/geo/s2"

// earthRadiusKm converts spherical angles to great-circle kilometres.
const earthRadiusKm = 6371.01

// distanceKm returns the great-circle distance between two points.
func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * earthRadiusKm
}

// NearestStation returns the station closest to (lat, lon) by great-circle
// distance, or nil for an empty database.
func (db *Database) NearestStation(lat, lon float64) (*Station, error) {
	stations, err := db.Stations()
	if err != nil {
		return nil, err
	}
	var nearest *Station
	best := 0.0
	for _, st := range stations {
		d := distanceKm(lat, lon, st.Latitude, st.Longitude)
		if nearest == nil || d < best {
			nearest, best = st, d
		}
	}
	return nearest, nil
}

// StationsWithin returns every station within radiusKm of (lat, lon), in
// record order.
func (db *Database) StationsWithin(lat, lon, radiusKm float64) ([]*Station, error) {
	return db.filterStations(func(st *Station) bool {
		return distanceKm(lat, lon, st.Latitude, st.Longitude) <= radiusKm
	})
}
