// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command shrinkctl drives the shrinkcore reachability pipeline over a
// program fixture and a keep configuration, mirroring cmd/pedumper.go's
// rootCmd/sub-command wiring with spf13/cobra.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saferwall/shrinkcore"
)

var (
	targetAPILevel       string
	minSupportedAPILevel string
	cmpLongBug           bool
	dotOut               string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shrinkctl",
		Short: "A reachability analysis driver for shrinkcore",
		Long:  "Runs the shrinkcore whole-program reachability pipeline over a program fixture and a keep configuration",
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(shrinkcore.Version)
		},
	}

	shrinkCmd := &cobra.Command{
		Use:   "shrink <program.json> <keep.rules>",
		Short: "Run the reachability fixed point and report what is kept",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShrink(args[0], args[1])
		},
	}
	shrinkCmd.Flags().StringVar(&targetAPILevel, "target-api-level", "", "target platform API level (semver, e.g. v24.0.0)")
	shrinkCmd.Flags().StringVar(&minSupportedAPILevel, "min-supported-api-level", "", "minimum supported platform API level")
	shrinkCmd.Flags().BoolVar(&cmpLongBug, "cmp-long-bug", false, "enable the long-compare platform-bug workaround")
	shrinkCmd.Flags().StringVar(&dotOut, "kept-graph-dot", "", "write the kept-reasons graph to this path in Graphviz DOT format")

	traceCmd := &cobra.Command{
		Use:   "trace <program.json> <keep.rules>",
		Short: "Run the pipeline and print one line per live method, live field, instantiated class and missing class",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(args[0], args[1])
		},
	}

	rootCmd.AddCommand(versionCmd, shrinkCmd, traceCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
