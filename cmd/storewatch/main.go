package main

import "github.com/storewatch/storewatch/internal/cli"

func main() {
	cli.Execute()
}
