package main

import "github.com/dmitrijs2005/flocksync/internal/client/cli"

func main() {
	cli.Execute()
}
