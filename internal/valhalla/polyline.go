// ABOUTME: Decodes Google encoded polylines as emitted by Valhalla.
// ABOUTME: Produces [lon, lat] pairs ready for GeoJSON.

package valhalla

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

// shapePrecision is the number of decimal places Valhalla encodes shapes with.
const shapePrecision = 6

var errTruncatedPolyline = errors.New("truncated polyline")

// decodePolyline decodes an encoded polyline with the given precision into
// [lon, lat] coordinates. Undecodable input wraps errTruncatedPolyline.
func decodePolyline(encoded string, precision int) ([][2]float64, error) {
	if encoded == "" {
		return nil, nil
	}

	codec := polyline.Codec{Dim: 2, Scale: math.Pow10(precision)}
	latLons, rest, err := codec.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTruncatedPolyline, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", errTruncatedPolyline, len(rest))
	}

	coords := make([][2]float64, len(latLons))
	for i, p := range latLons {
		coords[i] = [2]float64{p[1], p[0]}
	}
	return coords, nil
}
