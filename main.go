package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/achilleasa/treelet/cmd"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "treelet-bvh"
	app.Usage = "partition, inspect and traverse treelet-partitioned BVH scenes"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "dump",
			Usage: "partition a wavefront scene into treelets",
			Description: `
Parse a scene definition from a wavefront obj file, build the traversal graph
and allocate its nodes into treelets (C3/C4), then materialize and write the
resulting geometry and material treelets, along with the HEADER and
STATIC0_pre records, to an output directory.`,
			ArgsUsage: "scene_file.obj",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out, o", Usage: "output directory (defaults to <scene>.treelets)"},
				cli.StringFlag{Name: "algorithm, a", Value: "topological", Usage: "partition algorithm: topological, nvidia, greedysize, agglomerative, topohierarchical"},
				cli.StringFlag{Name: "split-method, s", Value: "sah", Usage: "flat BVH split method: sah, middle, equal, hlbvh"},
				cli.StringFlag{Name: "edge-policy", Value: "sendcheck", Usage: "traversal graph edge policy: sendcheck, checksend"},
				cli.IntFlag{Name: "max-node-prims", Value: 4, Usage: "max primitives per flat BVH leaf"},
				cli.IntFlag{Name: "max-treelet-bytes", Value: 1 << 20, Usage: "max serialized bytes per treelet"},
				cli.Float64Flag{Name: "material-budget-fraction", Value: 0.75, Usage: "fraction of max-treelet-bytes a material's textures may occupy"},
			},
			Action: cmd.DumpScene,
		},
		{
			Name:      "stat",
			Usage:     "print a summary of a dumped scene's treelet layout",
			ArgsUsage: "dumped_scene_dir",
			Action:    cmd.ShowStats,
		},
		{
			Name:      "trace",
			Usage:     "fire a single ray through a dumped scene",
			ArgsUsage: "dumped_scene_dir",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "origin", Value: "0,0,0", Usage: "ray origin as x,y,z"},
				cli.StringFlag{Name: "dir", Value: "0,0,-1", Usage: "ray direction as x,y,z"},
				cli.BoolFlag{Name: "preload", Usage: "eagerly preload every treelet instead of loading lazily on crossing"},
			},
			Action: cmd.TraceScene,
		},
	}

	app.Run(os.Args)
}
