/* Run the DASH7 Mode 2 kernel on a simulated radio */
package main

import (
	"os"

	otkernel "github.com/doismellburning/otkernel/src"
)

func main() {
	os.Exit(otkernel.SimMain(os.Args[1:], os.Stdout, os.Stderr))
}
