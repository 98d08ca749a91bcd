// Package main provides the nestbox CLI.
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "hub":
		hubCmd(args)
	case "helper":
		helperCmd(args)
	case "version":
		fmt.Printf("nestbox %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`nestbox - sandboxed agent helper orchestration

Usage:
  nestbox <command> [options]

Commands:
  hub       Run the helper hub (socket server and container broker)
  helper    Spawn and manage helper instances
  version   Print version information
  help      Show this help message

Examples:
  nestbox hub --name myproject --image ghcr.io/example/nestbox:latest
  nestbox helper spawn --model sonnet
  nestbox helper send 2 "status?"

Run 'nestbox <command> --help' for more information on a command.`)
}
