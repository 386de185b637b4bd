// Command virtual-pointer runs gesture flows against scene files.
package main

import "github.com/devicelab-dev/virtual-pointer/pkg/cli"

func main() {
	cli.Execute()
}
