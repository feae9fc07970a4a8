package material

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/achilleasa/treelet/types"
)

// tag identifies an ExprNode's concrete type in the serialized form. This
// replaces the teacher's reflect-based type switches (node.go's
// Validate() dispatches by Go type assertion) with an explicit byte tag,
// since the on-disk form needs a stable discriminator that source-level
// type assertions can't provide across a decode boundary.
type tag uint8

const (
	tagVec3 tag = iota
	tagFloat
	tagMaterialName
	tagMaterialRef
	tagTexture
	tagMix
	tagMixMap
	tagBumpMap
	tagNormalMap
	tagDisperse
	tagBxdf
)

// Encode serializes a material expression tree into the opaque blob format
// spec section 4.1 expects for material records ("(u32 id, blob) pairs").
func Encode(root ExprNode) []byte {
	var buf []byte
	buf = encodeNode(buf, root)
	return buf
}

func encodeNode(buf []byte, n ExprNode) []byte {
	switch v := n.(type) {
	case Vec3Node:
		buf = append(buf, byte(tagVec3))
		return appendVec3(buf, types.Vec3(v))
	case FloatNode:
		buf = append(buf, byte(tagFloat))
		return appendFloat32(buf, float32(v))
	case MaterialNameNode:
		buf = append(buf, byte(tagMaterialName))
		return appendString(buf, string(v))
	case MaterialRefNode:
		buf = append(buf, byte(tagMaterialRef))
		return appendString(buf, string(v))
	case TextureNode:
		buf = append(buf, byte(tagTexture))
		return appendString(buf, string(v))
	case MixNode:
		buf = append(buf, byte(tagMix))
		buf = encodeNode(buf, v.Expressions[0])
		buf = encodeNode(buf, v.Expressions[1])
		buf = appendFloat32(buf, v.Weights[0])
		return appendFloat32(buf, v.Weights[1])
	case MixMapNode:
		buf = append(buf, byte(tagMixMap))
		buf = encodeNode(buf, v.Expressions[0])
		buf = encodeNode(buf, v.Expressions[1])
		return appendString(buf, string(v.Texture))
	case BumpMapNode:
		buf = append(buf, byte(tagBumpMap))
		buf = encodeNode(buf, v.Expression)
		return appendString(buf, string(v.Texture))
	case NormalMapNode:
		buf = append(buf, byte(tagNormalMap))
		buf = encodeNode(buf, v.Expression)
		return appendString(buf, string(v.Texture))
	case DisperseNode:
		buf = append(buf, byte(tagDisperse))
		buf = encodeNode(buf, v.Expression)
		buf = appendVec3(buf, types.Vec3(v.IntIOR))
		return appendVec3(buf, types.Vec3(v.ExtIOR))
	case BxdfNode:
		buf = append(buf, byte(tagBxdf))
		buf = appendUint32(buf, uint32(v.Type))
		buf = appendUint32(buf, uint32(len(v.Parameters)))
		for _, p := range v.Parameters {
			buf = appendString(buf, p.Name)
			buf = encodeNode(buf, p.Value)
		}
		return buf
	default:
		panic(fmt.Sprintf("material: unknown ExprNode type %T", n))
	}
}

// Decode parses a blob produced by Encode back into an expression tree.
func Decode(blob []byte) (ExprNode, error) {
	n, _, err := decodeNode(blob, 0)
	return n, err
}

func decodeNode(buf []byte, pos int) (ExprNode, int, error) {
	if pos >= len(buf) {
		return nil, pos, fmt.Errorf("material: truncated blob at offset %d", pos)
	}
	t := tag(buf[pos])
	pos++

	switch t {
	case tagVec3:
		v, pos, err := readVec3(buf, pos)
		return Vec3Node(v), pos, err
	case tagFloat:
		v, pos, err := readFloat32(buf, pos)
		return FloatNode(v), pos, err
	case tagMaterialName:
		s, pos, err := readString(buf, pos)
		return MaterialNameNode(s), pos, err
	case tagMaterialRef:
		s, pos, err := readString(buf, pos)
		return MaterialRefNode(s), pos, err
	case tagTexture:
		s, pos, err := readString(buf, pos)
		return TextureNode(s), pos, err
	case tagMix:
		a, pos, err := decodeNode(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		b, pos, err := decodeNode(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		w0, pos, err := readFloat32(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		w1, pos, err := readFloat32(buf, pos)
		return MixNode{Expressions: [2]ExprNode{a, b}, Weights: [2]float32{w0, w1}}, pos, err
	case tagMixMap:
		a, pos, err := decodeNode(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		b, pos, err := decodeNode(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		tex, pos, err := readString(buf, pos)
		return MixMapNode{Expressions: [2]ExprNode{a, b}, Texture: TextureNode(tex)}, pos, err
	case tagBumpMap:
		e, pos, err := decodeNode(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		tex, pos, err := readString(buf, pos)
		return BumpMapNode{Expression: e, Texture: TextureNode(tex)}, pos, err
	case tagNormalMap:
		e, pos, err := decodeNode(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		tex, pos, err := readString(buf, pos)
		return NormalMapNode{Expression: e, Texture: TextureNode(tex)}, pos, err
	case tagDisperse:
		e, pos, err := decodeNode(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		intIOR, pos, err := readVec3(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		extIOR, pos, err := readVec3(buf, pos)
		return DisperseNode{Expression: e, IntIOR: Vec3Node(intIOR), ExtIOR: Vec3Node(extIOR)}, pos, err
	case tagBxdf:
		bxdfType, pos, err := readUint32(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		count, pos, err := readUint32(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		params := make(BxdfParameterList, count)
		for i := range params {
			name, p2, err := readString(buf, pos)
			if err != nil {
				return nil, p2, err
			}
			value, p3, err := decodeNode(buf, p2)
			if err != nil {
				return nil, p3, err
			}
			params[i] = BxdfParamNode{Name: name, Value: value}
			pos = p3
		}
		return BxdfNode{Type: BxdfType(bxdfType), Parameters: params}, pos, nil
	default:
		return nil, pos, fmt.Errorf("material: unknown tag %d at offset %d", t, pos-1)
	}
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendFloat32(buf []byte, v float32) []byte {
	return appendUint32(buf, math.Float32bits(v))
}

func appendVec3(buf []byte, v types.Vec3) []byte {
	buf = appendFloat32(buf, v[0])
	buf = appendFloat32(buf, v[1])
	return appendFloat32(buf, v[2])
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func readUint32(buf []byte, pos int) (uint32, int, error) {
	if pos+4 > len(buf) {
		return 0, pos, fmt.Errorf("material: truncated blob at offset %d", pos)
	}
	return binary.LittleEndian.Uint32(buf[pos : pos+4]), pos + 4, nil
}

func readFloat32(buf []byte, pos int) (float32, int, error) {
	v, pos, err := readUint32(buf, pos)
	return math.Float32frombits(v), pos, err
}

func readVec3(buf []byte, pos int) (types.Vec3, int, error) {
	var v types.Vec3
	var err error
	v[0], pos, err = readFloat32(buf, pos)
	if err != nil {
		return v, pos, err
	}
	v[1], pos, err = readFloat32(buf, pos)
	if err != nil {
		return v, pos, err
	}
	v[2], pos, err = readFloat32(buf, pos)
	return v, pos, err
}

func readString(buf []byte, pos int) (string, int, error) {
	n, pos, err := readUint32(buf, pos)
	if err != nil {
		return "", pos, err
	}
	if pos+int(n) > len(buf) {
		return "", pos, fmt.Errorf("material: truncated string at offset %d", pos)
	}
	return string(buf[pos : pos+int(n)]), pos + int(n), nil
}
