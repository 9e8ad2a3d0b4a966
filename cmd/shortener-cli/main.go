package main

import "shortener-core/cmd/shortener-cli/cmd"

func main() {
	cmd.Execute()
}
