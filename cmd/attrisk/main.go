// Command attrisk scores employee attrition risk from an HR spreadsheet.
package main

import "github.com/YuminosukeSato/attrisk/internal/cli"

func main() {
	cli.Execute()
}
