// The main package for the carsnbids executable.
package main

import "github.com/JakeFAU/carsnbids-loader/cmd"

func main() {
	cmd.Execute()
}
