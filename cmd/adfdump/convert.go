// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avalanche-tools/adf"
)

// newToXMLCmd builds a subcommand converting a binary ADF file of the
// given extension to its XML projection, mirroring the forward branch
// of adf_converter's extension-driven direction selection.
func newToXMLCmd(use, extension, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertToXML(args[0], extension)
		},
	}
}

// newFromXMLCmd builds a subcommand converting an XML projection back
// to its binary form. The target extension comes from the document's
// own "extension" attribute, not from the subcommand name: the name
// only documents the expected input for the operator.
func newFromXMLCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file.xml>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertFromXML(args[0])
		},
	}
}

func convertToXML(path, extension string) error {
	file, err := adf.Open(path, &adf.ReadOptions{Logger: cliLogger()})
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	ctx, err := adf.FromExtension(extension, nil)
	if err != nil {
		return fmt.Errorf("loading type libraries for %q: %w", extension, err)
	}
	ctx.LoadTypesFromFile(file)

	doc, err := adf.NewXMLFile(file, ctx, extension)
	if err != nil {
		return fmt.Errorf("projecting %s to xml: %w", path, err)
	}
	encoded, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("encoding xml: %w", err)
	}

	out := path + ".xml"
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func convertFromXML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := adf.ParseXMLFile(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	ctx, err := adf.FromExtension(doc.Extension, nil)
	if err != nil {
		return fmt.Errorf("loading type libraries for %q: %w", doc.Extension, err)
	}

	file, err := doc.ToFile(ctx)
	if err != nil {
		return fmt.Errorf("reconstructing %s: %w", path, err)
	}

	out := strings.TrimSuffix(path, ".xml")
	if out == path {
		out = path + "." + doc.Extension
	}
	if err := file.WriteFile(out, nil); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
