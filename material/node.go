// Package material implements the layered material expression tree that
// geometry treelets reference by MaterialKey and that material treelets
// carry as opaque blobs (spec section 4.1, record 5). Adapted from the
// teacher's asset/material package: the AST (this file), BXDF/op type
// enums (bxdf.go, op.go), and parameter defaults (defaults.go) are kept;
// a binary Encode/Decode pair (serialize.go) is added since the teacher
// never needed to write materials to a treelet file.
package material

import (
	"errors"
	"fmt"

	"github.com/achilleasa/treelet/types"
)

const (
	ParamReflectance   = "reflectance"
	ParamSpecularity   = "specularity"
	ParamTransmittance = "transmittance"
	ParamRadiance      = "radiance"
	ParamIntIOR        = "intIOR"
	ParamExtIOR        = "extIOR"
	ParamScale         = "scale"
	ParamRoughness     = "roughness"
)

var bxdfAllowedParameters = map[BxdfType]map[string]struct{}{
	BxdfEmissive: {
		ParamRadiance: struct{}{},
		ParamScale:    struct{}{},
	},
	BxdfDiffuse: {
		ParamReflectance: struct{}{},
	},
	BxdfConductor: {
		ParamSpecularity: struct{}{},
		ParamIntIOR:      struct{}{},
		ParamExtIOR:      struct{}{},
	},
	BxdfRoughConductor: {
		ParamSpecularity: struct{}{},
		ParamIntIOR:      struct{}{},
		ParamExtIOR:      struct{}{},
		ParamRoughness:   struct{}{},
	},
	BxdfDielectric: {
		ParamSpecularity:   struct{}{},
		ParamTransmittance: struct{}{},
		ParamIntIOR:        struct{}{},
		ParamExtIOR:        struct{}{},
	},
	BxdfRoughDielectric: {
		ParamSpecularity:   struct{}{},
		ParamTransmittance: struct{}{},
		ParamIntIOR:        struct{}{},
		ParamExtIOR:        struct{}{},
		ParamRoughness:     struct{}{},
	},
}

// ExprNode is any node in a material expression tree: a leaf value
// (Vec3Node, FloatNode, TextureNode, ...) or a combinator (MixNode,
// BumpMapNode, ...).
type ExprNode interface {
	Validate() error
}

type Vec3Node types.Vec3
type FloatNode float32
type MaterialNameNode string
type MaterialRefNode string
type TextureNode string

type BxdfParamNode struct {
	Name  string
	Value ExprNode
}

type BxdfParameterList []BxdfParamNode

type MixNode struct {
	Expressions [2]ExprNode
	Weights     [2]float32
}

type BumpMapNode struct {
	Expression ExprNode
	Texture    TextureNode
}

type MixMapNode struct {
	Expressions [2]ExprNode
	Texture     TextureNode
}

type NormalMapNode struct {
	Expression ExprNode
	Texture    TextureNode
}

type DisperseNode struct {
	Expression ExprNode
	IntIOR     Vec3Node
	ExtIOR     Vec3Node
}

// BxdfNode is the root of a material's expression tree: a single BXDF type
// plus its named parameters (each of which may itself be a combinator).
type BxdfNode struct {
	Type       BxdfType
	Parameters BxdfParameterList
}

func (n Vec3Node) Validate() error { return nil }

func (n FloatNode) Validate() error { return nil }

func (n MaterialNameNode) Validate() error {
	if n == "" {
		return errors.New("material name cannot be empty")
	}
	return nil
}

func (n MaterialRefNode) Validate() error {
	if n == "" {
		return errors.New("material name cannot be empty")
	}
	return nil
}

func (n TextureNode) Validate() error {
	if n == "" {
		return errors.New("no texture path specified")
	}
	return nil
}

func (n BxdfParamNode) Validate() error {
	switch n.Name {
	case ParamReflectance:
		if v, isVec := n.Value.(Vec3Node); isVec && (v[0] >= 1.0 || v[1] >= 1.0 || v[2] >= 1.0) {
			return fmt.Errorf("energy conservation violation for parameter %q; ensure that all vector components are < 1.0", n.Name)
		}
	case ParamSpecularity, ParamTransmittance:
		if v, isVec := n.Value.(Vec3Node); isVec && (v[0] > 1.0 || v[1] > 1.0 || v[2] > 1.0) {
			return fmt.Errorf("energy conservation violation for parameter %q; ensure that all vector components are <= 1.0", n.Name)
		}
	case ParamRoughness:
		if v, isFloat := n.Value.(FloatNode); isFloat && v > 1.0 {
			return fmt.Errorf("values for parameter %q must be in the [0, 1] range", n.Name)
		}
	case ParamIntIOR, ParamExtIOR:
		if v, isMat := n.Value.(MaterialNameNode); isMat {
			if _, err := IOR(string(v)); err != nil {
				return err
			}
		}
	}
	return n.Value.Validate()
}

func (n BxdfParameterList) Validate() error { return nil }

func (n BumpMapNode) Validate() error {
	if n.Expression == nil {
		return fmt.Errorf("missing expression argument for %q", "BumpMap")
	}
	if err := n.Texture.Validate(); err != nil {
		return fmt.Errorf("BumpMap: %v", err)
	}
	return nil
}

func (n NormalMapNode) Validate() error {
	if n.Expression == nil {
		return fmt.Errorf("missing expression argument for %q", "NormalMap")
	}
	if err := n.Texture.Validate(); err != nil {
		return fmt.Errorf("NormalMap: %v", err)
	}
	return nil
}

func (n DisperseNode) Validate() error {
	if n.Expression == nil {
		return fmt.Errorf("missing expression argument for %q", "Disperse")
	}
	if types.Vec3(n.IntIOR).MaxComponent() == 0.0 && types.Vec3(n.ExtIOR).MaxComponent() == 0.0 {
		return fmt.Errorf("Disperse: at least one of the intIOR and extIOR parameters must contain a non-zero value")
	}
	return nil
}

func (n MixMapNode) Validate() error {
	for argIndex, arg := range n.Expressions {
		if arg == nil {
			return fmt.Errorf("missing expression argument %d for %q", argIndex, "mixMap")
		}
		if err := arg.Validate(); err != nil {
			return fmt.Errorf("mixMap argument %d: %v", argIndex, err)
		}
	}
	if err := n.Texture.Validate(); err != nil {
		return fmt.Errorf("MixMap: %v", err)
	}
	return nil
}

func (n MixNode) Validate() error {
	for argIndex, arg := range n.Expressions {
		if arg == nil {
			return fmt.Errorf("missing expression argument %d for %q", argIndex, "mix")
		}
		if err := arg.Validate(); err != nil {
			return fmt.Errorf("mix argument %d: %v", argIndex, err)
		}
		if n.Weights[argIndex] < 0 || n.Weights[argIndex] > 1.0 {
			return fmt.Errorf("mix weight %d: value must be in the [0, 1] range", argIndex)
		}
	}
	if n.Weights[0]+n.Weights[1] != 1.0 {
		return fmt.Errorf("mix weight sum must be equal to 1.0")
	}
	return nil
}

func (n BxdfNode) Validate() error {
	if n.Type == bxdfInvalid {
		return fmt.Errorf("invalid BXDF type")
	}
	for _, param := range n.Parameters {
		if _, isAllowed := bxdfAllowedParameters[n.Type][param.Name]; !isAllowed {
			return fmt.Errorf("bxdf type %q does not support parameter %q", n.Type, param.Name)
		}
		if err := param.Validate(); err != nil {
			return err
		}
	}
	return nil
}
