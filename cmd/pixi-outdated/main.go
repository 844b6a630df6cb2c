package main

import "pixi-outdated/internal/cli"

func main() {
	cli.Execute()
}
