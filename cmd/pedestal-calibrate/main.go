// Command pedestal-calibrate reduces a set of packette backing files
// into a per-channel, per-capacitor pedestal (baseline mean and standard
// deviation), one worker per file, and writes the result to a
// "<board id>.pedestal" artifact.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/kcroker/packette/packette"
	"github.com/kcroker/packette/packetterun"
	"github.com/kcroker/packette/pedestal"
)

func main() {
	var (
		flagOutput = flag.String("o", "", "output `file` (default: <board id>.pedestal)")
		flagLevel  = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := logrus.ParseLevel(*flagLevel)
	if err != nil {
		log.Fatal(err)
	}
	logrus.SetLevel(level)

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	boardID, err := probeBoardID(paths[0])
	if err != nil {
		log.Fatal(err)
	}

	logrus.WithField("files", len(paths)).Info("pedestal-calibrate: spawning a worker per file")

	result, warnings, err := pedestal.Compute(context.Background(), boardID, paths)
	if err != nil {
		log.Fatal(err)
	}
	for _, w := range warnings {
		logrus.Warn(w)
	}

	out := *flagOutput
	if out == "" {
		out = fmt.Sprintf("%s.pedestal", boardID)
	}

	if err := pedestal.WriteFile(out, result); err != nil {
		log.Fatal(err)
	}

	logrus.WithField("file", out).Info("pedestal-calibrate: wrote pedestal artifact")
}

// probeBoardID opens the first input file as a run (which indexes the
// whole file) to learn its board id before handing every file to the
// worker pool.
func probeBoardID(path string) (packette.BoardID, error) {
	r, err := packetterun.Open([]string{path}, packetterun.ViewTime)
	if err != nil {
		return packette.BoardID{}, err
	}
	defer r.Close()
	return r.BoardID(), nil
}
