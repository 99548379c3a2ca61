package main

import (
	"os"

	"live-caption-service/cmd/captionctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
