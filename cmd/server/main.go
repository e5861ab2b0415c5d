// tabnet-server: serves the bridge protocol on stdin/stdout
//
// Usage (with tabnet-client, over named pipes):
//
//	mkfifo req resp
//	tabnet-server < req > resp &
//	tabnet-client --data=bcw.csv --arch="30 16:relu 1:sigmoid" > req < resp
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"

	"tabnet/bridge"
	"tabnet/utils"
)

var (
	verbose = flag.Bool("verbose", false, "Verbose output")
	timing  = flag.Bool("timing", false, "Print timing statistics to stderr on exit")
)

func main() {
	flag.Parse()
	utils.Verbose = *timing
	utils.Output = os.Stderr

	var out io.Writer = io.Discard
	if *verbose {
		out = os.Stderr
	}
	logger := stdlog.New(out, "[SERVER] ", stdlog.Ltime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log("tabnet server starting")
	server := bridge.NewServer(os.Stdin, os.Stdout, logger)
	if err := server.Serve(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	utils.PrintTimingStats(server.Stats())
	log("Server done")
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[SERVER] "+format+"\n", args...)
	}
}
