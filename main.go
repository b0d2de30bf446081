package main

import "github.com/brokerdb/sqlguard/cmd"

func main() {
	cmd.Execute()
}
