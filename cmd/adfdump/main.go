// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command adfdump inspects ADF containers and converts them to and
// from their XML projection, the way saferwall/pe's pedumper inspects
// PE binaries.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "adfdump",
		Short: "Inspect and convert Avalanche Data Format (ADF) files",
		Long: "adfdump parses ADF v4 containers, prints a summary of their\n" +
			"contents, and converts them to and from an XML projection.",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log parse diagnostics to stderr")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDumpCmd())
	rootCmd.AddCommand(newToXMLCmd("adf2xml", "adf", "convert a plain .adf file to XML"))
	rootCmd.AddCommand(newToXMLCmd("xlsc2xml", "xlsc", "convert a compiled spreadsheet (.xlsc) file to XML"))
	rootCmd.AddCommand(newToXMLCmd("effc2xml", "effc", "convert a compiled effect (.effc) file to XML"))
	rootCmd.AddCommand(newFromXMLCmd("xml2adf", "convert an XML projection back to a plain .adf file"))
	rootCmd.AddCommand(newFromXMLCmd("xml2xlsc", "convert an XML projection back to a compiled spreadsheet (.xlsc) file"))
	rootCmd.AddCommand(newFromXMLCmd("xml2effc", "convert an XML projection back to a compiled effect (.effc) file"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the adfdump version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("adfdump v4")
		},
	}
}
