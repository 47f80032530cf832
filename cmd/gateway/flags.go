package main

import (
	"fmt"
	"io"
)

func handleUsage(args []string, w io.Writer) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "-help" || arg == "--help" {
			printUsage(w)
			return true
		}
	}
	return false
}

func printUsage(w io.Writer) {
	if w == nil {
		return
	}
	fmt.Fprintln(w, "Usage")
	fmt.Fprintln(w, "  gateway [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Flags")
	fmt.Fprintln(w, "  listen_addr string listen address")
	fmt.Fprintln(w, "  upstream_url string upstream base url")
	fmt.Fprintln(w, "  store_type string counter store type (redis, memory)")
	fmt.Fprintln(w, "  rate_limit int requests per window")
	fmt.Fprintln(w, "  rate_window_ms int window size ms")
	fmt.Fprintln(w, "  failure_policy string open or closed")
	fmt.Fprintln(w, "  breaker_failure_threshold int breaker failure threshold")
	fmt.Fprintln(w, "  breaker_open_ms int breaker open ms")
}
