// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/ingest"
)

// loadProgram opens path as an ingest JSON fixture, mirroring
// pedumper.go's parsePE: open, defer close, bail on any parse error.
func loadProgram(path string) (*appmodel.Program, *appmodel.Context, error) {
	src, err := ingest.New(path, nil)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	ctx := appmodel.NewContext()
	prog, err := src.Parse(ctx)
	if err != nil {
		return nil, nil, err
	}
	return prog, ctx, nil
}
