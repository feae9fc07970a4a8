package cmd

import (
	"github.com/achilleasa/treelet/log"
	"github.com/urfave/cli"
)

var logger = log.New("treelet")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
