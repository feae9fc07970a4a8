package dump

import (
	"sort"
	"strings"

	"github.com/achilleasa/treelet/material"
	"github.com/achilleasa/treelet/texture"
	"github.com/achilleasa/treelet/treelet"
)

// MaterialTreeletKeyCap is the maximum number of distinct texture keys
// packed into a single material treelet (spec section 4.5, point 1: "capped
// at 150 keys per treelet").
const MaterialTreeletKeyCap = 150

// MaterialAsset is a scene material awaiting placement into a material
// treelet.
type MaterialAsset struct {
	ID   uint32
	Expr material.ExprNode
}

// materialGroup is one texture-key bucket: a set of referenced texture
// names and the materials that share it (spec section 4.5, point 1,
// "group materials by their set of referenced texture filenames").
type materialGroup struct {
	key       string
	textures  map[string]struct{}
	materials []MaterialAsset
}

func (g *materialGroup) textureBytes(textures map[string]*texture.Texture) uint64 {
	var total uint64
	for name := range g.textures {
		if tex, ok := textures[name]; ok {
			total += tex.Bytes()
		}
	}
	return total
}

// GroupMaterialsByTextureKey buckets materials by their referenced texture
// set, merging a group into another whose set is a (non-strict) superset
// (spec section 4.5, point 1: "Merge texture keys that are strict
// subsets"). Materials with no textures form their own zero-texture group.
func GroupMaterialsByTextureKey(materials []MaterialAsset) []*materialGroup {
	var groups []*materialGroup
	for _, m := range materials {
		refs := material.TextureRefs(m.Expr)
		set := make(map[string]struct{}, len(refs))
		for _, r := range refs {
			set[r] = struct{}{}
		}

		var target *materialGroup
		for _, g := range groups {
			if isSubset(set, g.textures) {
				target = g
				break
			}
			if isSubset(g.textures, set) {
				g.textures = set
				target = g
				break
			}
		}
		if target == nil {
			target = &materialGroup{textures: set}
			groups = append(groups, target)
		}
		target.materials = append(target.materials, m)
	}
	for _, g := range groups {
		g.key = textureKey(g.textures)
	}
	return groups
}

func isSubset(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func textureKey(set map[string]struct{}) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// FacePartition is one budget-bounded slice of a cut ptex texture, plus the
// new material it belongs to (spec section 4.5, point 1: "each partition
// becomes a new material with a new ptex file holding only those faces...").
type FacePartition struct {
	NewMaterialID uint32
	Texture       string
	Faces         texture.FaceRemap
}

// MaterialCut is the result of cutting one oversized material's textures.
type MaterialCut struct {
	OrigMaterialID uint32
	Partitions     []FacePartition
}

// CutOversizedMaterials walks every material whose total referenced texture
// bytes exceed budget and cuts each such texture's face graph into
// budget-bounded partitions, minting one new material id per partition via
// nextID (spec section 4.5, point 1). Materials under budget, or textures
// with no face graph (non-ptex, e.g. a flat environment map), pass through
// untouched.
func CutOversizedMaterials(materials []MaterialAsset, textures map[string]*texture.Texture, budget uint64, nextID func() uint32) []MaterialCut {
	var cuts []MaterialCut
	for _, m := range materials {
		refs := material.TextureRefs(m.Expr)
		var totalBytes uint64
		for _, name := range refs {
			if tex, ok := textures[name]; ok {
				totalBytes += tex.Bytes()
			}
		}
		if totalBytes <= budget {
			continue
		}

		var partitions []FacePartition
		for _, name := range refs {
			tex, ok := textures[name]
			if !ok || tex.Faces == nil {
				continue
			}
			faceBytes := func(face int32) uint64 {
				if len(tex.Faces.Neighbors) == 0 {
					return 0
				}
				return tex.Bytes() / uint64(len(tex.Faces.Neighbors))
			}
			for _, remap := range tex.Faces.Cut(faceBytes, budget) {
				partitions = append(partitions, FacePartition{
					NewMaterialID: nextID(),
					Texture:       name,
					Faces:         remap,
				})
			}
		}
		if len(partitions) > 0 {
			cuts = append(cuts, MaterialCut{OrigMaterialID: m.ID, Partitions: partitions})
		}
	}
	return cuts
}

// PackMaterialTreelets first-fit-decreasing packs texture-key groups into
// material treelets capped at MaterialTreeletKeyCap keys per treelet (spec
// section 4.5, point 1). Materials with no textures (a single
// zero-texture group) are appended to the smallest resulting treelet.
func PackMaterialTreelets(groups []*materialGroup, textures map[string]*texture.Texture, maxTreeletBytes uint64, nextTreeletID func() uint32) []*treelet.Treelet {
	var zeroTexGroup *materialGroup
	var sized []*materialGroup
	for _, g := range groups {
		if len(g.textures) == 0 {
			zeroTexGroup = g
			continue
		}
		sized = append(sized, g)
	}

	sort.Slice(sized, func(i, j int) bool {
		return sized[i].textureBytes(textures) > sized[j].textureBytes(textures)
	})

	var treelets []*treelet.Treelet
	var bytesUsed []uint64
	var keysUsed []int

	for _, g := range sized {
		gBytes := g.textureBytes(textures)
		placed := false
		for i, t := range treelets {
			if keysUsed[i] >= MaterialTreeletKeyCap {
				continue
			}
			if bytesUsed[i]+gBytes > maxTreeletBytes {
				continue
			}
			addGroupToTreelet(t, g, textures)
			bytesUsed[i] += gBytes
			keysUsed[i]++
			placed = true
			break
		}
		if !placed {
			t := treelet.NewTreelet(nextTreeletID())
			addGroupToTreelet(t, g, textures)
			treelets = append(treelets, t)
			bytesUsed = append(bytesUsed, gBytes)
			keysUsed = append(keysUsed, 1)
		}
	}

	if zeroTexGroup != nil {
		if len(treelets) == 0 {
			t := treelet.NewTreelet(nextTreeletID())
			treelets = append(treelets, t)
			bytesUsed = append(bytesUsed, 0)
			keysUsed = append(keysUsed, 0)
		}
		smallest := 0
		for i := range treelets {
			if bytesUsed[i] < bytesUsed[smallest] {
				smallest = i
			}
		}
		addGroupToTreelet(treelets[smallest], zeroTexGroup, textures)
	}

	return treelets
}

func addGroupToTreelet(t *treelet.Treelet, g *materialGroup, textures map[string]*texture.Texture) {
	for name := range g.textures {
		if tex, ok := textures[name]; ok {
			t.Textures[stableTextureID(name)] = tex.Data
		}
	}
	for _, m := range g.materials {
		t.Materials[m.ID] = material.Encode(m.Expr)
	}
}

// stableTextureID derives a deterministic texture id from its filename so
// the same texture always lands at the same id across runs (spec section
// 6, "must be reproducible bit-exact"); FNV-1a keeps this dependency-free.
func stableTextureID(name string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	return h
}
