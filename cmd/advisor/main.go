// cmd/advisor/main.go
package main

import "cashback-advisor/internal/cli"

func main() {
	cli.Execute()
}
