package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/achilleasa/treelet/dump"
)

// ShowStats loads the HEADER and STATIC0_pre records written by a previous
// dump run and prints a tabular summary of the resulting treelet layout.
func ShowStats(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing dumped scene directory argument")
	}
	dir := ctx.Args().First()

	header, err := dump.ReadHeader(dir)
	if err != nil {
		return err
	}
	allocation, err := dump.ReadStaticAllocation(dir)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Treelet ID", "Incoming probability"})
	for _, entry := range allocation {
		table.Append([]string{fmt.Sprintf("%d", entry.TreeletID), fmt.Sprintf("%.4f", entry.TotalProbability)})
	}
	table.SetFooter([]string{"Total treelets", fmt.Sprintf("%d", len(allocation))})
	table.Render()

	logger.Noticef("scene bounds: min=%v max=%v", header.Bounds.Min, header.Bounds.Max)
	logger.Noticef("total treelet bytes: %d", header.TotalTreeletBytes)
	logger.Noticef("treelet layout:\n%s", buf.String())
	return nil
}
