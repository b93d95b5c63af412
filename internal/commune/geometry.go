package commune

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/model"
)

const srid = 4326

// ContourFromGeoJSON decodes a GeoJSON Polygon or MultiPolygon and returns it
// as an EWKB MultiPolygon with SRID 4326.
func ContourFromGeoJSON(data []byte) ([]byte, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrap(err, "commune: decode contour")
	}

	var mp *geom.MultiPolygon
	switch v := g.(type) {
	case *geom.MultiPolygon:
		mp = v
	case *geom.Polygon:
		mp = geom.NewMultiPolygon(v.Layout())
		if err := mp.Push(v); err != nil {
			return nil, eris.Wrap(err, "commune: promote polygon")
		}
	default:
		return nil, eris.Errorf("commune: unexpected contour geometry %T", g)
	}
	if mp.NumPolygons() == 0 {
		return nil, eris.New("commune: empty contour")
	}
	return encode(mp.SetSRID(srid))
}

// ContourFromShape converts a shapefile polygon to an EWKB MultiPolygon.
// Clockwise rings start a new polygon, counter-clockwise rings are holes of
// the polygon before them. Returns nil, nil for other shapes.
func ContourFromShape(shape shp.Shape) ([]byte, error) {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("commune: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) <= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("commune: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil, nil
	}
	return encode(mp)
}

// PointEWKB encodes a WGS84 point.
func PointEWKB(p model.Point) ([]byte, error) {
	return encode(geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}).SetSRID(srid))
}

func encode(g geom.T) ([]byte, error) {
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "commune: encode EWKB")
	}
	return data, nil
}

// signedArea is positive for counter-clockwise rings.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}
