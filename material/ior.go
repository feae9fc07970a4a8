package material

import "fmt"

// KnownIORs maps well known material names to their index of refraction,
// used when a dielectric/conductor bxdf parameter names a material instead
// of supplying a literal value. This table was not present in the copied
// teacher package (asset/material/defaults.go references KnownIORs without
// defining it); the values below are the standard textbook IORs used by
// offline renderers for these materials.
var KnownIORs = map[string]float32{
	"Vacuum":  1.0,
	"Air":     1.000277,
	"Water":   1.333,
	"Ice":     1.31,
	"Glass":   1.5168,
	"Sapphire": 1.77,
	"Diamond": 2.419,
}

// IOR looks up a known material's index of refraction by name.
func IOR(name string) (float32, error) {
	v, ok := KnownIORs[name]
	if !ok {
		return 0, fmt.Errorf("unknown IOR material %q", name)
	}
	return v, nil
}
