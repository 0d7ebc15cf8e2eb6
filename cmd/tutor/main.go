package main

import "signconnect/tutor/internal/cli"

func main() {
	cli.Execute()
}
