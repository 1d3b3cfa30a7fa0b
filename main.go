// Command flight-reload asks a running FlightAnalytics server to reopen its
// log file and reload the source tables by sending it SIGHUP.
package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
)

func main() {
	pidFile := flag.String("pidfile", "flight.pid", "pid file written by the server")
	pid := flag.Int("pid", 0, "server process id, overrides -pidfile")
	flag.Parse()

	target := *pid
	if target == 0 {
		data, err := os.ReadFile(*pidFile)
		if err != nil {
			log.Fatal("Failed to read pid file:", err)
		}
		target, err = strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			log.Fatal("Invalid pid file:", err)
		}
	}

	if err := syscall.Kill(target, syscall.SIGHUP); err != nil {
		log.Fatal("Failed to send SIGHUP:", err)
	}
	log.Printf("SIGHUP sent to %d", target)
}
