package dams

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/watershed-cli/internal/model"
)

// yamlFile accepts either a bare list or a {dams: [...]} document.
type yamlFile struct {
	Dams []yamlDam `yaml:"dams"`
}

type yamlDam struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Lon       *float64 `yaml:"lon"`
	Longitude *float64 `yaml:"longitude"`
	Lat       *float64 `yaml:"lat"`
	Latitude  *float64 `yaml:"latitude"`
}

// ReadYAML parses a YAML dam list.
func ReadYAML(r io.Reader) ([]model.Dam, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "dams: read yaml")
	}

	var list []yamlDam
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc yamlFile
		if docErr := yaml.Unmarshal(data, &doc); docErr != nil {
			return nil, eris.Wrap(err, "dams: parse yaml")
		}
		list = doc.Dams
	}

	dams := make([]model.Dam, 0, len(list))
	for i, y := range list {
		lon := firstSet(y.Lon, y.Longitude)
		lat := firstSet(y.Lat, y.Latitude)
		if lon == nil || lat == nil {
			return nil, eris.Errorf("dams: yaml entry %d (%s) missing lon/lat", i+1, y.ID)
		}
		id := NormalizeID(y.ID)
		if id == "" {
			id = "row-" + strconv.Itoa(i+1)
		}
		dams = append(dams, model.Dam{ID: id, Name: NormalizeName(y.Name), Lon: *lon, Lat: *lat})
	}
	if err := Validate(dams); err != nil {
		return nil, err
	}
	return dams, nil
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
