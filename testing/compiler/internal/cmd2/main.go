package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Printf("command 2: %v", os.Args[1:])
}
