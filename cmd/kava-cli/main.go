// Command kava-cli sends one ad-hoc command to a node and prints its
// response. Usage: kava-cli <host:port> <command...>
package main

import (
	"fmt"
	"os"
	"strings"

	"kava/pkg/client"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: kava-cli <host:port> <command...>")
		os.Exit(1)
	}

	addr := os.Args[1]
	line := strings.Join(os.Args[2:], " ")

	resp, err := client.New(addr).Send(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kava-cli: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(resp)
}
