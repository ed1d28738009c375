package main

import "github.com/khanhnv2901/urlrisk/cmd"

// execCmd is indirected so tests can stub out command execution.
var execCmd = cmd.Execute

func main() {
	execCmd()
}
