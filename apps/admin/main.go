package main

import (
	"fmt"
	"os"

	"github.com/trezcool/registrar/core"
	logsvc "github.com/trezcool/registrar/services/logger"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	cli := newCommandLine(conf, logger)
	err = cli.run(os.Args)
	cli.close()
	logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
