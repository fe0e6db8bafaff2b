package main

import "time"

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// APIFlags point the client commands at a running controller.
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

type StatusFlags struct {
	APIFlags
	Detailed bool // include pid, run id and start time
}
