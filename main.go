package main

import "github.com/manifest-network/benchie/cmd/benchie"

func main() {
	benchie.Execute()
}
