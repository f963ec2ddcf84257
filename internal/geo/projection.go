package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/wroge/wgs84"

	"github.com/RogersSierra/extension/pkg/core"
)

// maxMercatorLat is the latitude where Web Mercator is cut off.
const maxMercatorLat = 85.05112878

var (
	toMercator = wgs84.EPSG().Transform(4326, 3857)
	toLonLat   = wgs84.EPSG().Transform(3857, 4326)
)

// ParseOrigin parses "lon,lat" in degrees.
func ParseOrigin(s string) (core.LonLat, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return core.LonLat{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.LonLat{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.LonLat{}, ErrInvalidCoordinates
	}
	o := core.LonLat{Lon: lon, Lat: lat}
	if !validLonLat(o) {
		return core.LonLat{}, ErrInvalidCoordinates
	}
	return o, nil
}

func validLonLat(o core.LonLat) bool {
	return !math.IsNaN(o.Lon) && !math.IsNaN(o.Lat) &&
		math.Abs(o.Lon) <= 180 && math.Abs(o.Lat) <= maxMercatorLat
}

// Project places a world position on the earth. World X runs east and Y
// north from origin, in ground metres. Mercator metres grow by 1/cos(lat),
// so offsets are scaled at the origin's latitude; at train scale the error
// is negligible.
func Project(origin core.LonLat, v core.Vector3) (core.LonLat, error) {
	if !validLonLat(origin) || !v.IsFinite() {
		return core.LonLat{}, ErrInvalidCoordinates
	}
	ox, oy, _ := toMercator(origin.Lon, origin.Lat, 0)
	k := 1 / math.Cos(origin.Lat*math.Pi/180)
	lon, lat, _ := toLonLat(ox+v.X*k, oy+v.Y*k, 0)
	return core.LonLat{Lon: lon, Lat: lat}, nil
}
