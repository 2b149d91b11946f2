// Command packette-dump opens a packette run, either from a list of
// backing files or from a live UDP endpoint, and prints a summary of its
// events and channels.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/kcroker/packette/packetterun"
)

func main() {
	var (
		flagLive  = flag.String("live", "", "capture live from `host:port` instead of reading files")
		flagView  = flag.String("view", "time", "coordinate system: time or sca")
		flagLevel = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := logrus.ParseLevel(*flagLevel)
	if err != nil {
		log.Fatal(err)
	}
	logrus.SetLevel(level)

	view, ok := parseView(*flagView)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -view %q\n", *flagView)
		flag.Usage()
		os.Exit(1)
	}

	var run *packetterun.Run
	if *flagLive != "" {
		host, port, err := splitHostPort(*flagLive)
		if err != nil {
			log.Fatal(err)
		}
		run, _, err = packetterun.OpenLive(host, port, view)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		paths := flag.Args()
		if len(paths) == 0 {
			flag.Usage()
			os.Exit(1)
		}
		run, err = packetterun.Open(paths, view)
		if err != nil {
			log.Fatal(err)
		}
	}
	defer run.Close()

	fmt.Printf("board id: %s\n", run.BoardID())
	fmt.Printf("events indexed: %d\n", run.Len())

	it := run.Iter()
	for it.Next() {
		event := it.Event()
		fmt.Printf("event %d: trigger_low=%d channels=%d\n",
			event.EventNum, event.TriggerLow, len(event.Channels()))
	}
	if err := it.Err(); err != nil {
		log.Fatal(err)
	}

	if err := run.CaptureErr(); err != nil {
		log.Fatal(err)
	}
}

func splitHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}

func parseView(s string) (packetterun.ViewMode, bool) {
	switch s {
	case "time":
		return packetterun.ViewTime, true
	case "sca":
		return packetterun.ViewSCA, true
	default:
		return 0, false
	}
}
