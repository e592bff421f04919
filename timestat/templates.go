package timestat

import (
	"fmt"
	"math"

	"github.com/sdifrance/gribcube/cube"
	"github.com/sdifrance/gribcube/griberr"
	"github.com/sdifrance/gribcube/message"
)

// Probability describes a field that holds the probability of the
// phenomenon lying above or below a threshold.
type Probability struct {
	// Type is "above_threshold" or "below_threshold".
	Type      string
	Threshold float64
}

// Apply renames c after the probability and adds the threshold as a scalar
// coordinate named after the original phenomenon.
func (p *Probability) Apply(c *cube.Cube) error {
	threshold := &cube.Coord{
		StandardName: c.StandardName,
		LongName:     c.LongName,
		Units:        c.Units,
		Points:       []float64{p.Threshold},
	}
	if threshold.StandardName == "" && threshold.LongName == "" {
		threshold.LongName = c.Name()
	}
	c.LongName = fmt.Sprintf("probability_of_%s_%s", c.Name(), p.Type)
	c.StandardName = ""
	c.Units = "1"
	return c.AddAuxCoord(threshold)
}

// Code table 4.9 - Probability type, for the types with a single limit.
var probabilityTypes = map[int64]struct {
	name  string
	limit string
}{
	0: {"below_threshold", "LowerLimit"},
	1: {"above_threshold", "UpperLimit"},
	3: {"above_threshold", "LowerLimit"},
	4: {"below_threshold", "UpperLimit"},
}

func probability(sec4 *message.Section) (*Probability, error) {
	code, err := sec4.Int("probabilityType")
	if err != nil {
		return nil, err
	}
	pt, ok := probabilityTypes[code]
	if !ok {
		return nil, griberr.Unsupportedf("product definition section 4 contains an unsupported probability type [%d]", code)
	}
	factor, ok, err := sec4.OptInt("scaleFactorOf" + pt.limit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, griberr.MalformedSectionf("product definition section 4 contains a missing scale factor of %s", pt.limit)
	}
	value, ok, err := sec4.OptInt("scaledValueOf" + pt.limit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, griberr.MalformedSectionf("product definition section 4 contains a missing scaled value of %s", pt.limit)
	}
	return &Probability{Type: pt.name, Threshold: unscale(value, factor)}, nil
}

// unscale returns value / 10^factor.
func unscale(value, factor int64) float64 {
	if factor < 0 {
		return float64(value) * math.Pow10(int(-factor))
	}
	return float64(value) / math.Pow10(int(factor))
}

// spatialProcess is an entry of Code table 4.15 - Type of spatial
// processing used to arrive at a given data value from the source data.
type spatialProcess struct {
	name string
	// statistic is set when the value is a statistic over the source
	// points.
	statistic bool
	points    int64
}

var spatialProcesses = map[int64]spatialProcess{
	0: {name: "No interpolation", statistic: true},
	1: {name: "Bilinear interpolation", points: 4},
	2: {name: "Bicubic interpolation", points: 4},
	3: {name: "Nearest neighbour interpolation", points: 1},
	4: {name: "Budget interpolation", points: 4},
	5: {name: "Spectral interpolation", points: 4},
	6: {name: "Neighbour-budget interpolation", points: 4},
}

// spatialStatistic reads template 4.15. Only values taken from the source
// grid without interpolation are a statistic, over the area.
func spatialStatistic(t *Times, sec4 *message.Section) error {
	code, err := sec4.Int("spatialProcessing")
	if err != nil {
		return err
	}
	sp, ok := spatialProcesses[code]
	if !ok {
		return griberr.Unsupportedf("product definition section 4 contains an unsupported spatial processing type [%d]", code)
	}
	t.setAttribute("spatial_processing_type", sp.name)
	if !sp.statistic {
		return nil
	}
	stat, err := sec4.Int("statisticalProcess")
	if err != nil {
		return err
	}
	name, err := statisticName(stat)
	if err != nil {
		return err
	}
	t.CellMethods = append(t.CellMethods, cube.CellMethod{Method: name, Coords: []string{"area"}})
	return nil
}

func spatialProcessCode(name string) (int64, spatialProcess, bool) {
	for code, sp := range spatialProcesses {
		if sp.name == name {
			return code, sp, true
		}
	}
	return 0, spatialProcess{}, false
}
