// Command crewdeck is the terminal client for the crewdeck team backend:
// task board, chat, and roster against the same REST and push APIs the web
// app uses.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
