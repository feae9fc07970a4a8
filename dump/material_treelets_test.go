package dump

import (
	"testing"

	"github.com/achilleasa/treelet/material"
	"github.com/achilleasa/treelet/texture"
)

func makeDiffuseWithTexture(texName string) material.ExprNode {
	return material.BxdfNode{
		Type: material.BxdfDiffuse,
		Parameters: material.BxdfParameterList{
			{Name: material.ParamReflectance, Value: material.TextureNode(texName)},
		},
	}
}

func TestGroupMaterialsByTextureKeySharesGroupForSameTextureSet(t *testing.T) {
	assets := []MaterialAsset{
		{ID: 0, Expr: makeDiffuseWithTexture("wood.ptx")},
		{ID: 1, Expr: makeDiffuseWithTexture("wood.ptx")},
		{ID: 2, Expr: makeDiffuseWithTexture("metal.ptx")},
	}

	groups := GroupMaterialsByTextureKey(assets)

	if len(groups) != 2 {
		t.Fatalf("expected 2 texture-key groups, got %d", len(groups))
	}
	total := 0
	for _, g := range groups {
		total += len(g.materials)
	}
	if total != 3 {
		t.Fatalf("expected all 3 materials placed, got %d", total)
	}
}

func TestGroupMaterialsByTextureKeyMergesStrictSubset(t *testing.T) {
	subset := material.BxdfNode{
		Type: material.BxdfDiffuse,
		Parameters: material.BxdfParameterList{
			{Name: material.ParamReflectance, Value: material.TextureNode("wood.ptx")},
		},
	}
	superset := material.BxdfNode{
		Type: material.BxdfRoughConductor,
		Parameters: material.BxdfParameterList{
			{Name: material.ParamSpecularity, Value: material.TextureNode("wood.ptx")},
			{Name: material.ParamRoughness, Value: material.TextureNode("wood_rough.ptx")},
		},
	}
	assets := []MaterialAsset{
		{ID: 0, Expr: superset},
		{ID: 1, Expr: subset},
	}

	groups := GroupMaterialsByTextureKey(assets)

	if len(groups) != 1 {
		t.Fatalf("expected the subset group merged into the superset group, got %d groups", len(groups))
	}
	if len(groups[0].materials) != 2 {
		t.Fatalf("expected both materials in the merged group, got %d", len(groups[0].materials))
	}
}

func TestGroupMaterialsByTextureKeyZeroTextureMaterialsFormOwnGroup(t *testing.T) {
	assets := []MaterialAsset{
		{ID: 0, Expr: material.FloatNode(0.5)},
	}

	groups := GroupMaterialsByTextureKey(assets)

	if len(groups) != 1 || len(groups[0].textures) != 0 {
		t.Fatalf("expected a single zero-texture group, got %+v", groups)
	}
}

func TestPackMaterialTreeletsRespectsKeyCap(t *testing.T) {
	var assets []MaterialAsset
	textures := map[string]*texture.Texture{}
	for i := 0; i < MaterialTreeletKeyCap+5; i++ {
		name := string(rune('a'+i)) + "_tex.ptx"
		textures[name] = &texture.Texture{Data: []byte{1}}
		assets = append(assets, MaterialAsset{ID: uint32(i), Expr: makeDiffuseWithTexture(name)})
	}

	groups := GroupMaterialsByTextureKey(assets)
	next := uint32(0)
	treelets := PackMaterialTreelets(groups, textures, 1<<30, func() uint32 { id := next; next++; return id })

	for _, tl := range treelets {
		if len(tl.Materials) > MaterialTreeletKeyCap {
			t.Fatalf("treelet %d exceeds key cap: %d materials", tl.ID, len(tl.Materials))
		}
	}
	if len(treelets) < 2 {
		t.Fatalf("expected packing to spill into a second treelet, got %d", len(treelets))
	}
}

func TestPackMaterialTreeletsAppendsZeroTextureGroupToSmallest(t *testing.T) {
	textures := map[string]*texture.Texture{
		"big.ptx": {Data: make([]byte, 1000)},
	}
	assets := []MaterialAsset{
		{ID: 0, Expr: makeDiffuseWithTexture("big.ptx")},
		{ID: 1, Expr: material.FloatNode(1)},
	}

	groups := GroupMaterialsByTextureKey(assets)
	next := uint32(0)
	treelets := PackMaterialTreelets(groups, textures, 1<<30, func() uint32 { id := next; next++; return id })

	if len(treelets) != 1 {
		t.Fatalf("expected a single treelet when everything fits budget, got %d", len(treelets))
	}
	if len(treelets[0].Materials) != 2 {
		t.Fatalf("expected both materials placed in the single treelet, got %d", len(treelets[0].Materials))
	}
}

func TestCutOversizedMaterialsSkipsMaterialsUnderBudget(t *testing.T) {
	textures := map[string]*texture.Texture{
		"small.ptx": {Data: make([]byte, 10)},
	}
	assets := []MaterialAsset{
		{ID: 0, Expr: makeDiffuseWithTexture("small.ptx")},
	}

	cuts := CutOversizedMaterials(assets, textures, 1000, func() uint32 { return 99 })

	if len(cuts) != 0 {
		t.Fatalf("expected no cuts for a material under budget, got %d", len(cuts))
	}
}

func TestCutOversizedMaterialsCutsTextureWithFaceGraph(t *testing.T) {
	neighbors := make([][4]int32, 8)
	for i := range neighbors {
		neighbors[i] = [4]int32{-1, -1, -1, -1}
		if i > 0 {
			neighbors[i][0] = int32(i - 1)
		}
		if i < len(neighbors)-1 {
			neighbors[i][1] = int32(i + 1)
		}
	}
	tex := &texture.Texture{Data: make([]byte, 800), Faces: texture.NewFaceGraph(neighbors)}
	textures := map[string]*texture.Texture{"big.ptx": tex}
	assets := []MaterialAsset{
		{ID: 0, Expr: makeDiffuseWithTexture("big.ptx")},
	}

	next := uint32(1000)
	cuts := CutOversizedMaterials(assets, textures, 100, func() uint32 { id := next; next++; return id })

	if len(cuts) != 1 {
		t.Fatalf("expected 1 material cut, got %d", len(cuts))
	}
	if len(cuts[0].Partitions) < 2 {
		t.Fatalf("expected at least 2 face partitions for an 800-byte texture under a 100-byte budget, got %d", len(cuts[0].Partitions))
	}
}
