package main

import (
	"os"

	admin "github.com/silinternational/analytics-admin"
)

func main() {
	configFile := ""
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	if err := admin.Run(configFile); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}
