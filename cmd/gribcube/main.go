// Command gribcube inspects, summarizes and converts GRIB files.
package main

import (
	"flag"

	"github.com/golang/glog"
)

func main() {
	// glog complains about logging before flag.Parse; cobra parses its flags.
	flag.CommandLine.Parse(nil)
	if err := newRoot().Execute(); err != nil {
		glog.Exitf("got fatal error: %v", err)
	}
}
