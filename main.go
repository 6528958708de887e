package main

import "github.com/skilletlabs/skillet/cmd/skillet"

func main() {
	skillet.Execute()
}
