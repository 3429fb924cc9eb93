package main

import "github.com/lepresidente/xmltv-enrich/internal/cmd"

func main() {
	cmd.Execute()
}
