package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Printf("command 1: %v", os.Args[1:])
}
