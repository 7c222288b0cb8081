package main

import (
	"os"

	"github.com/psantana5/haproxy-autoconf/cmd/haproxy-autoconf/cmd"
	"github.com/psantana5/haproxy-autoconf/internal/daemon"
)

func main() {
	os.Exit(daemon.ExitCode(cmd.Execute()))
}
