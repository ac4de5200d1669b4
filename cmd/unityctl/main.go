// unityctl is the command-line driver for the unityctl-bridge daemon.
package main

import "github.com/unityctl/unityctl/internal/cli"

func main() {
	cli.Execute()
}
