package main

import "github.com/Brownie44l1/cassava-api/internal/cli"

func main() {
	cli.Execute()
}
