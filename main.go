package main

import (
	"github.com/padthaitofuhot/pve-cslb/pkg/cmd"
)

var AppVersion = "1.5.0"
var AppGitCommit = ""
var AppGitState = ""

func Version() string {
	version := AppVersion
	if len(AppGitCommit) > 0 {
		version += "-"
		version += AppGitCommit[0:8]
	}
	if len(AppGitState) > 0 && AppGitState != "clean" {
		version += "-"
		version += AppGitState
	}
	return version
}

func main() {
	cmd.Run(Version())
}
