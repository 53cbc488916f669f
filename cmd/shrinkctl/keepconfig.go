// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/ingest"
	"github.com/saferwall/shrinkcore/keep"
)

// loadKeepConfig reads a minimal line-oriented keep-rule file, one root
// per line:
//
//	class Lcom/app/Main;
//	method Lcom/app/Main;main([Ljava/lang/String;)V
//	field Lcom/app/Main;instance:Lcom/app/Main;
//
// A path ending in ".p7s" is treated as a PKCS7-signed envelope whose
// verified plaintext carries the same line format (keep.LoadSigned).
//
// This is the command-line-tool-local stand-in for the real,
// out-of-scope configuration-file parser: the core itself
// only ever consumes the already-parsed keep.Configuration.
func loadKeepConfig(ctx *appmodel.Context, path string) (*keep.Configuration, error) {
	if strings.HasSuffix(path, ".p7s") {
		envelope, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return keep.LoadSigned(envelope, func(plaintext []byte) (*keep.Configuration, error) {
			return parseKeepRules(ctx, bytes.NewReader(plaintext), path)
		}, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseKeepRules(ctx, f, path)
}

func parseKeepRules(ctx *appmodel.Context, r io.Reader, path string) (*keep.Configuration, error) {
	cfg := &keep.Configuration{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("keep config %s:%d: expected \"<kind> <descriptor>\"", path, lineNo)
		}
		entry, err := parseRoot(ctx, fields[0], fields[1])
		if err != nil {
			return nil, fmt.Errorf("keep config %s:%d: %w", path, lineNo, err)
		}
		cfg.Roots = append(cfg.Roots, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseRoot(ctx *appmodel.Context, kind, descriptor string) (keep.RootEntry, error) {
	switch kind {
	case "class":
		return keep.RootEntry{Class: ctx.InternType(descriptor)}, nil
	case "method":
		m, err := ingest.ParseMethodRef(ctx, descriptor)
		if err != nil {
			return keep.RootEntry{}, err
		}
		return keep.RootEntry{Method: m}, nil
	case "field":
		f, err := ingest.ParseFieldRef(ctx, descriptor)
		if err != nil {
			return keep.RootEntry{}, err
		}
		return keep.RootEntry{Field: f}, nil
	default:
		return keep.RootEntry{}, fmt.Errorf("unknown root kind %q (want class|method|field)", kind)
	}
}
