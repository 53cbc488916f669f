// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/saferwall/shrinkcore"
)

func runShrink(fixturePath, keepPath string) error {
	prog, ctx, err := loadProgram(fixturePath)
	if err != nil {
		return err
	}
	cfg, err := loadKeepConfig(ctx, keepPath)
	if err != nil {
		return err
	}

	out, _, err := shrinkcore.Run(prog, cfg, &shrinkcore.Options{
		TargetAPILevel:       targetAPILevel,
		MinSupportedAPILevel: minSupportedAPILevel,
		CmpLongBug:           cmpLongBug,
	})
	if err != nil {
		return err
	}

	fmt.Printf("live types:       %d\n", out.LiveTypes.Len())
	fmt.Printf("instantiated:     %d\n", out.InstantiatedClasses.Len())
	fmt.Printf("live methods:     %d\n", out.LiveMethods.Len())
	fmt.Printf("targeted methods: %d\n", out.TargetedMethods.Len())
	fmt.Printf("live fields:      %d\n", out.LiveFields.Len())
	fmt.Printf("missing classes:  %d (worst severity: %s)\n", len(out.MissingClasses.Entries()), out.MissingClasses.WorstSeverity())

	if dotOut != "" {
		f, err := os.Create(dotOut)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := out.KeptGraph.WriteDOT(f, ctx); err != nil {
			return err
		}
	}
	return nil
}

func runTrace(fixturePath, keepPath string) error {
	prog, ctx, err := loadProgram(fixturePath)
	if err != nil {
		return err
	}
	cfg, err := loadKeepConfig(ctx, keepPath)
	if err != nil {
		return err
	}

	out, _, err := shrinkcore.Run(prog, cfg, &shrinkcore.Options{
		TargetAPILevel:       targetAPILevel,
		MinSupportedAPILevel: minSupportedAPILevel,
		CmpLongBug:           cmpLongBug,
	})
	if err != nil {
		return err
	}

	for _, m := range out.LiveMethods.Items() {
		holder := ctx.Descriptor(ctx.MethodHolder(m))
		name := ctx.MethodName(m)
		fmt.Printf("live\tmethod\t%s.%s\n", holder, name)
	}
	for _, f := range out.LiveFields.Items() {
		holder := ctx.Descriptor(ctx.FieldHolder(f))
		name := ctx.FieldName(f)
		fmt.Printf("live\tfield\t%s.%s\n", holder, name)
	}
	for _, t := range out.InstantiatedClasses.Items() {
		fmt.Printf("instantiated\tclass\t%s\n", ctx.Descriptor(t))
	}
	for _, e := range out.MissingClasses.Entries() {
		fmt.Printf("missing[%s]\t%s\t%s\n", e.Severity, ctx.Descriptor(e.Type), e.Reason)
	}
	return nil
}
