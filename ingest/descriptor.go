// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ingest

import (
	"fmt"
	"strings"

	"github.com/saferwall/shrinkcore/appmodel"
)

// ParseMethodRef decodes "Lholder;name(Lparam1;I)Lret;" into a MethodRef,
// interning every type it mentions. A degenerate grammar compared to a
// real constant-pool method-ref decode, but sufficient for a fixture
// format whose only job is to exercise the core end to end. Exported
// for cmd/shrinkctl's keep-rule file parser, which addresses roots
// using the same descriptor syntax as the fixture format.
func ParseMethodRef(ctx *appmodel.Context, s string) (appmodel.MethodRef, error) {
	semi := strings.IndexByte(s, ';')
	if semi < 0 || s[0] != 'L' {
		return appmodel.MethodRef{}, fmt.Errorf("ingest: malformed method ref %q", s)
	}
	holder := ctx.InternType(s[:semi+1])
	rest := s[semi+1:]
	open := strings.IndexByte(rest, '(')
	shut := strings.IndexByte(rest, ')')
	if open < 0 || shut < open {
		return appmodel.MethodRef{}, fmt.Errorf("ingest: malformed method ref %q", s)
	}
	name := rest[:open]
	params := parseTypeList(ctx, rest[open+1:shut])
	ret := ctx.InternType(rest[shut+1:])
	return ctx.InternMethod(holder, name, appmodel.Proto{Params: params, Return: ret}), nil
}

// ParseFieldRef decodes "Lholder;name:Ltype;".
func ParseFieldRef(ctx *appmodel.Context, s string) (appmodel.FieldRef, error) {
	semi := strings.IndexByte(s, ';')
	if semi < 0 || s[0] != 'L' {
		return appmodel.FieldRef{}, fmt.Errorf("ingest: malformed field ref %q", s)
	}
	holder := ctx.InternType(s[:semi+1])
	rest := s[semi+1:]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return appmodel.FieldRef{}, fmt.Errorf("ingest: malformed field ref %q", s)
	}
	name := rest[:colon]
	typ := ctx.InternType(rest[colon+1:])
	return ctx.InternField(holder, name, typ), nil
}

// parseTypeList splits a descriptor-concatenated parameter list, e.g.
// "ILjava/lang/String;[I" -> ["I", "Ljava/lang/String;", "[I"].
func parseTypeList(ctx *appmodel.Context, s string) []appmodel.Type {
	var out []appmodel.Type
	i := 0
	for i < len(s) {
		start := i
		for s[i] == '[' {
			i++
		}
		switch s[i] {
		case 'L':
			j := strings.IndexByte(s[i:], ';')
			i += j + 1
		default:
			i++
		}
		out = append(out, ctx.InternType(s[start:i]))
	}
	return out
}
