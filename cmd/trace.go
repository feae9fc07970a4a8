package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	"github.com/achilleasa/treelet/config"
	"github.com/achilleasa/treelet/dump"
	"github.com/achilleasa/treelet/residency"
	"github.com/achilleasa/treelet/trace"
	"github.com/achilleasa/treelet/types"
)

// TraceScene loads a dumped scene's treelets through the residency manager
// and fires a single test ray through the traverser, printing whether it
// hit and, if so, which treelet/material it resolved to. A CPU smoke test
// standing in for the teacher's opencl-backed render command (spec section
// 1 excludes a full renderer from this subsystem's scope).
func TraceScene(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing dumped scene directory argument")
	}
	dir := ctx.Args().First()

	origin, err := parseVec3Flag(ctx.String("origin"))
	if err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	dirVec, err := parseVec3Flag(ctx.String("dir"))
	if err != nil {
		return fmt.Errorf("dir: %w", err)
	}

	opts := config.Default()
	opts.Preload = ctx.Bool("preload")
	if !opts.Preload {
		opts.WorkerThreads = 1
	}

	loader := dump.NewDirLoader(dir)
	manager, err := residency.NewManager(opts, loader)
	if err != nil {
		return err
	}

	// dump always partitions with a single direction (cmd/dump.go uses
	// graph.Direction(0)), so the root treelet is always id 0 regardless
	// of ray direction; there are no per-octant roots to pick among.
	tr := trace.NewTraverser(manager, false)
	ray := types.Ray{Origin: origin, Dir: dirVec, TMin: 0, TMax: 1e30}

	root := tr.RootTreelet(ray.Dir, [8]uint32{0})

	hit, err := tr.Intersect(ray, root)
	if err != nil {
		return err
	}
	if hit == nil {
		logger.Noticef("ray origin=%v dir=%v: miss", ray.Origin, ray.Dir)
		return nil
	}
	logger.Noticef("ray origin=%v dir=%v: hit treelet=%d mesh=%d tri=%d t=%v material=(treelet=%d id=%d)",
		ray.Origin, ray.Dir, hit.Treelet, hit.MeshID, hit.TriIndex, hit.T, hit.Material.Treelet, hit.Material.ID)
	return nil
}

// parseVec3Flag parses a "x,y,z" triple into a Vec3.
func parseVec3Flag(s string) (types.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return types.Vec3{}, fmt.Errorf("expected 3 comma-separated components, got %q", s)
	}
	var v types.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(f)
	}
	return v, nil
}
