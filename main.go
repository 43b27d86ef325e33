package main

import "github.com/MikeWKI/WKI-WIP/cmd"

func main() {
	cmd.Execute()
}
