package main

import "github.com/metal-stack/dhcprobe/probe/cli"

func main() {
	cli.CLI()
}
