package material

// TextureRefs walks a material expression tree and returns the distinct
// texture filenames it references, in first-seen order. Used by the
// dumper to compute each material's "texture key" for grouping materials
// into material treelets (spec section 4.5, point 1).
func TextureRefs(n ExprNode) []string {
	seen := map[string]struct{}{}
	var order []string
	var walk func(ExprNode)
	walk = func(n ExprNode) {
		switch v := n.(type) {
		case TextureNode:
			if _, ok := seen[string(v)]; !ok {
				seen[string(v)] = struct{}{}
				order = append(order, string(v))
			}
		case MixNode:
			walk(v.Expressions[0])
			walk(v.Expressions[1])
		case MixMapNode:
			walk(v.Expressions[0])
			walk(v.Expressions[1])
			walk(v.Texture)
		case BumpMapNode:
			walk(v.Expression)
			walk(v.Texture)
		case NormalMapNode:
			walk(v.Expression)
			walk(v.Texture)
		case DisperseNode:
			walk(v.Expression)
		case BxdfNode:
			for _, p := range v.Parameters {
				walk(p.Value)
			}
		}
	}
	walk(n)
	return order
}
