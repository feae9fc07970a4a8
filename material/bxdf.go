package material

// BxdfType represents the surface types supported by the renderer. Adapted
// verbatim from the teacher's asset/material/bxdf.go.
type BxdfType int

const (
	bxdfInvalid BxdfType = iota
	BxdfEmissive
	BxdfDiffuse
	BxdfConductor
	BxdfRoughConductor
	BxdfDielectric
	BxdfRoughDielectric
)

func (t BxdfType) String() string {
	switch t {
	case BxdfEmissive:
		return "emissive"
	case BxdfDiffuse:
		return "diffuse"
	case BxdfConductor:
		return "conductor"
	case BxdfRoughConductor:
		return "roughConductor"
	case BxdfDielectric:
		return "dielectric"
	case BxdfRoughDielectric:
		return "roughDielectric"
	}
	return "invalid"
}
