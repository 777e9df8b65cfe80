// Command bloomctl creates, queries and inspects Bloom filter image files.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
