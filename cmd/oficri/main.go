package main

import (
	"flag"
	"fmt"
	"os"

	"oficri-sdt/core/appbootstrap"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the configuration file")
	flag.Parse()

	if err := appbootstrap.Run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "oficri:", err)
		os.Exit(1)
	}
}
