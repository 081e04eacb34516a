// planctl is the command-line administration tool for planschedule.
package main

import "github.com/civicplan/planschedule/internal/interfaces/cli"

func main() {
	cli.Execute()
}
