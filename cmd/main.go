package main

import "paas-deployer/internal/cli"

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cli.SetVersionInfo(Version, BuildTime, GitCommit)
	cli.Execute()
}
