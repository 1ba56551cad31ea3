package main

import (
	"fmt"
	"os"
)

//go:noinline
func fixtureLeaf(n int) int {
	if n < 2 {
		return n
	}
	return n * 3
}

//go:noinline
func fixtureCaller(args []string) int {
	return fixtureLeaf(len(args)) + 1
}

func main() {
	fmt.Println(fixtureCaller(os.Args))
}
