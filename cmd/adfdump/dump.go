// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avalanche-tools/adf"
	"github.com/avalanche-tools/adf/log"
)

var (
	dumpAll       bool
	dumpHeader    bool
	dumpTypes     bool
	dumpInstances bool
	dumpHashes    bool
	dumpAnomalies bool
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the contents of an ADF file",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}
	cmd.Flags().BoolVar(&dumpAll, "all", false, "print every section")
	cmd.Flags().BoolVar(&dumpHeader, "header", true, "print the file header summary")
	cmd.Flags().BoolVar(&dumpTypes, "types", false, "print the type table")
	cmd.Flags().BoolVar(&dumpInstances, "instances", false, "print the instance table")
	cmd.Flags().BoolVar(&dumpHashes, "hashes", false, "print the hash list")
	cmd.Flags().BoolVar(&dumpAnomalies, "anomalies", false, "print tolerated parse quirks")
	return cmd
}

func runDump(cmd *cobra.Command, args []string) error {
	path := args[0]
	opts := &adf.ReadOptions{Logger: cliLogger()}
	file, err := adf.Open(path, opts)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if dumpHeader || dumpAll {
		fmt.Printf("version:     %d\n", file.Version)
		fmt.Printf("description: %q\n", file.Description)
		fmt.Printf("types:       %d\n", len(file.Types))
		fmt.Printf("instances:   %d\n", len(file.Instances))
		fmt.Printf("hashes:      %d\n", len(file.Hashes))
	}
	if dumpTypes || dumpAll {
		fmt.Println(prettyPrint(file.Types))
	}
	if dumpInstances || dumpAll {
		fmt.Println(prettyPrint(file.Instances))
	}
	if dumpHashes || dumpAll {
		fmt.Println(prettyPrint(file.Hashes))
	}
	if (dumpAnomalies || dumpAll) && len(file.Anomalies) > 0 {
		fmt.Println(prettyPrint(file.Anomalies))
	}
	return nil
}

// prettyPrint marshals v as indented JSON, falling back to its error
// text rather than failing the dump outright.
func prettyPrint(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}
	return string(b)
}

// cliLogger returns nil (package default) unless --verbose was given,
// in which case every parse diagnostic down to Debug is printed to
// stderr instead of the package's default Warn-and-above filter.
func cliLogger() log.Logger {
	if !verbose {
		return nil
	}
	return log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(log.LevelDebug))
}
