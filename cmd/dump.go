package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/achilleasa/treelet/dump"
	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/graph"
	"github.com/achilleasa/treelet/partition"
	"github.com/achilleasa/treelet/scenegraph"
)

// DumpScene reads a wavefront scene, runs the C4/C5 partitioner and
// materializer against it, and writes the resulting treelets plus the
// HEADER/STATIC0_pre records to an output directory.
func DumpScene(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}
	sceneFile := ctx.Args().First()
	if !strings.HasSuffix(sceneFile, ".obj") {
		return fmt.Errorf("unsupported scene file %q; expected a .obj file", sceneFile)
	}

	logger.Noticef("parsing scene: %s", sceneFile)
	sc, textures, err := scenegraph.ReadWavefront(sceneFile)
	if err != nil {
		return err
	}
	logger.Noticef("scene summary:\n%s", sc.Stats())

	algo, err := parseAlgorithm(ctx.String("algorithm"))
	if err != nil {
		return err
	}
	split, err := parseSplitMethod(ctx.String("split-method"))
	if err != nil {
		return err
	}
	policy, err := parseEdgePolicy(ctx.String("edge-policy"))
	if err != nil {
		return err
	}

	opts := dump.Options{
		Algorithm:              algo,
		Direction:              graph.Direction(0),
		EdgePolicy:             policy,
		MaxNodePrims:           ctx.Int("max-node-prims"),
		SplitMethod:            split,
		MaxTreeletBytes:        uint64(ctx.Int("max-treelet-bytes")),
		MaterialBudgetFraction: float32(ctx.Float64("material-budget-fraction")),
	}

	d := dump.NewDumper(opts)
	logger.Notice("partitioning scene into treelets")
	result, err := d.Run(sc, textures)
	if err != nil {
		return err
	}

	outDir := ctx.String("out")
	if outDir == "" {
		outDir = strings.TrimSuffix(sceneFile, ".obj") + ".treelets"
	}
	if err := dump.WriteDir(outDir, result); err != nil {
		return err
	}

	logger.Noticef("wrote %d geometry treelet(s) and %d material treelet(s) to %s (%d bytes total)",
		len(result.GeometryTreelets), len(result.MaterialTreelets), outDir, result.Header.TotalTreeletBytes)
	return nil
}

func parseAlgorithm(s string) (partition.Algorithm, error) {
	switch s {
	case "", "topological":
		return partition.Topological, nil
	case "nvidia":
		return partition.Nvidia, nil
	case "greedysize":
		return partition.GreedySize, nil
	case "agglomerative":
		return partition.PseudoAgglomerative, nil
	case "topohierarchical":
		return partition.TopologicalHierarchical, nil
	default:
		return 0, fmt.Errorf("unrecognised partition algorithm %q", s)
	}
}

func parseSplitMethod(s string) (flatbvh.SplitMethod, error) {
	switch s {
	case "", "sah":
		return flatbvh.SplitSAH, nil
	case "middle":
		return flatbvh.SplitMiddle, nil
	case "equal":
		return flatbvh.SplitEqual, nil
	case "hlbvh":
		return flatbvh.SplitHLBVH, nil
	default:
		return 0, fmt.Errorf("unrecognised split method %q", s)
	}
}

func parseEdgePolicy(s string) (graph.EdgePolicy, error) {
	switch s {
	case "", "sendcheck":
		return graph.SendCheck, nil
	case "checksend":
		return graph.CheckSend, nil
	default:
		return 0, fmt.Errorf("unrecognised edge policy %q", s)
	}
}
