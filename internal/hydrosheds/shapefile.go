package hydrosheds

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/model"
)

// Attribute names in the HydroSHEDS dBASE tables.
const (
	FieldHybasID  = "HYBAS_ID"
	FieldNextDown = "NEXT_DOWN"
	FieldPfafID   = "PFAF_ID"
	FieldSort     = "SORT"
	FieldHyrivID  = "HYRIV_ID"
	FieldLengthKm = "LENGTH_KM"
)

// attrReader wraps a go-shp reader with name-based attribute lookup.
type attrReader struct {
	*shp.Reader
	path     string
	fieldIdx map[string]int
}

func openShapefile(path string) (*attrReader, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "hydrosheds: open shapefile %s", path)
	}
	fields := reader.Fields()
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		idx[strings.ToUpper(name)] = i
	}
	return &attrReader{Reader: reader, path: path, fieldIdx: idx}, nil
}

func (r *attrReader) require(names ...string) error {
	for _, n := range names {
		if _, ok := r.fieldIdx[n]; !ok {
			return eris.Errorf("hydrosheds: %s has no %s field", r.path, n)
		}
	}
	return nil
}

func (r *attrReader) str(name string) string {
	i, ok := r.fieldIdx[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.Trim(r.Attribute(i), "\x00"))
}

// int64Attr parses an integer attribute. dBASE numeric fields written with
// a decimal part ("123.0") are accepted.
func (r *attrReader) int64Attr(name string) (int64, bool) {
	s := r.str(name)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// pfafAttr returns PFAF_ID as a digit string.
func (r *attrReader) pfafAttr() string {
	s := r.str(FieldPfafID)
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}
	return s
}

// ReadBasins parses one HydroBASINS level shapefile.
func ReadBasins(path string, level int) ([]model.Basin, error) {
	r, err := openShapefile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	if err := r.require(FieldHybasID, FieldNextDown, FieldPfafID); err != nil {
		return nil, err
	}

	var (
		basins  []model.Basin
		skipped int
	)
	for r.Next() {
		n, shape := r.Shape()

		id, ok := r.int64Attr(FieldHybasID)
		if !ok {
			return nil, eris.Errorf("hydrosheds: %s record %d: bad %s %q", path, n, FieldHybasID, r.str(FieldHybasID))
		}
		next, _ := r.int64Attr(FieldNextDown)
		sortKey, ok := r.int64Attr(FieldSort)
		if !ok {
			sortKey = id
		}

		poly, isPoly := shape.(*shp.Polygon)
		if !isPoly {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		basins = append(basins, model.Basin{
			ID:       id,
			PfafCode: r.pfafAttr(),
			NextDown: next,
			Level:    level,
			SortKey:  sortKey,
			Geometry: mp,
		})
	}
	if err := r.Err(); err != nil {
		return nil, eris.Wrapf(err, "hydrosheds: read %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("hydrosheds: skipped basin records",
			zap.String("path", path),
			zap.Int("level", level),
			zap.Int("skipped", skipped),
		)
	}
	return basins, nil
}

// ReadRivers parses a HydroRIVERS shapefile.
func ReadRivers(path string) ([]model.RiverReach, error) {
	r, err := openShapefile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	if err := r.require(FieldHyrivID); err != nil {
		return nil, err
	}

	var (
		reaches []model.RiverReach
		skipped int
	)
	for r.Next() {
		n, shape := r.Shape()

		id, ok := r.int64Attr(FieldHyrivID)
		if !ok {
			return nil, eris.Errorf("hydrosheds: %s record %d: bad %s %q", path, n, FieldHyrivID, r.str(FieldHyrivID))
		}
		pl, isLine := shape.(*shp.PolyLine)
		if !isLine {
			skipped++
			continue
		}
		ls := polyLineToLineString(pl)
		if ls == nil {
			skipped++
			continue
		}

		var lengthKm float64
		if s := r.str(FieldLengthKm); s != "" {
			lengthKm, _ = strconv.ParseFloat(s, 64)
		}

		reaches = append(reaches, model.RiverReach{ID: id, LengthKm: lengthKm, Geometry: ls})
	}
	if err := r.Err(); err != nil {
		return nil, eris.Wrapf(err, "hydrosheds: read %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("hydrosheds: skipped river records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return reaches, nil
}
