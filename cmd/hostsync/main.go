// Package main is the entry point for hostsync.
package main

import "hostsync/cmd/hostsync/cmd"

func main() {
	cmd.Execute()
}
