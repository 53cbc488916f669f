// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package ingest is the harness that hands the core an appmodel.AppModel.
// The wire-format bytecode parser itself is an out-of-scope external
// collaborator; this package is the thin seam between "bytes
// on disk" and "an appmodel.Program", built the way file.go memory-maps
// a PE image instead of copying it into a []byte with ioutil.ReadFile.
//
// The format read here is a JSON fixture (one Class per top-level array
// element) meant for tests, `cmd/shrinkctl`, and fuzzing
// the raw<->IR round trip -- not a real class-file/DEX reader, which
// belongs to the excluded parser collaborator.
package ingest

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/log"
)

// DefaultMaxClasses bounds how many classes a single Source will parse,
// the way file.go's MaxDefaultCOFFSymbolsCount bounds a single malformed
// or adversarial input from exhausting memory.
const DefaultMaxClasses = 1 << 20

// ErrTooManyClasses is returned by Parse when the input declares more
// classes than opts.MaxClasses allows.
var ErrTooManyClasses = errors.New("ingest: class count exceeds MaxClasses")

// Options configures one Source, the way pe.Options configures one File.
type Options struct {
	// MaxClasses bounds the number of classes Parse will accept, by
	// default DefaultMaxClasses.
	MaxClasses int

	// A custom logger.
	Logger log.Logger
}

func (o *Options) withDefaults() *Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.MaxClasses == 0 {
		out.MaxClasses = DefaultMaxClasses
	}
	return &out
}

// Source is an open, not-yet-parsed program fixture. Mirrors pe.File's
// split between "opened" (mmap'd, header not yet walked) and "parsed".
type Source struct {
	data   mmap.MMap
	bytes  []byte // set instead of data by NewBytes, which has nothing to unmap
	f      *os.File
	opts   *Options
	logger *log.Helper
}

// New opens name and memory-maps it read-only, deferring the fixture
// decode to Parse.
func New(name string, opts *Options) (*Source, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	o := opts.withDefaults()
	return &Source{data: data, f: f, opts: o, logger: o.newLogger()}, nil
}

// NewBytes wraps an in-memory fixture buffer, the way pe.NewBytes wraps
// an already-read-into-memory PE image (used by Fuzz and by tests that
// build the fixture in-process rather than from a file).
func NewBytes(data []byte, opts *Options) (*Source, error) {
	o := opts.withDefaults()
	return &Source{bytes: data, opts: o, logger: o.newLogger()}, nil
}

func (o *Options) newLogger() *log.Helper {
	if o.Logger != nil {
		return log.NewHelper(o.Logger)
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(log.LevelError)))
}

// Close unmaps the file opened by New. A no-op for a Source built by
// NewBytes.
func (s *Source) Close() error {
	if s.data != nil {
		err := s.data.Unmap()
		s.f.Close()
		return err
	}
	return nil
}

func (s *Source) raw() []byte {
	if s.data != nil {
		return s.data
	}
	return s.bytes
}

// fixtureClass is the on-disk shape of one class entry. Field names are
// deliberately terse (the fixture format has no external consumers to
// keep stable against).
type fixtureClass struct {
	Type       string           `json:"type"`
	Kind       string           `json:"kind"` // "program" | "classpath" | "library"
	Flags      uint32           `json:"flags"`
	Super      string           `json:"super"`
	Interfaces []string         `json:"interfaces"`
	NestHost   string           `json:"nest_host"`
	Fields     []fixtureField   `json:"fields"`
	Methods    []fixtureMethod  `json:"methods"`
}

type fixtureField struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Flags  uint32 `json:"flags"`
}

type fixtureMethod struct {
	Name          string              `json:"name"`
	Params        []string            `json:"params"`
	Return        string              `json:"return"`
	Flags         uint32              `json:"flags"`
	Init          uint8               `json:"init"` // appmodel.InitializerFlavor
	RegisterCount int                 `json:"registers"`
	Code          []fixtureInstr      `json:"code"`

	// LocalsDebugNames maps a register number to its debug name, encoded
	// the way a class-file/DEX debug-info table stores it: hex-encoded,
	// NUL-terminated UTF-16LE bytes (see appmodel.DecodeUTF16LocalName).
	LocalsDebugNames map[int32]string `json:"locals_debug_names"`
}

type fixtureInstr struct {
	Op            uint16   `json:"op"`
	Method        string   `json:"method"` // "Lholder;name(params)ret"
	Field         string   `json:"field"`  // "Lholder;name:type"
	Type          string   `json:"type"`
	Registers     []int32  `json:"registers"`
	StringOperand string   `json:"string"`
	IntOperand    int64    `json:"int"`
	Targets       []int32  `json:"targets"`
	Keys          []int32  `json:"keys"`
	ArrayData     []int64  `json:"array_data"`
}

// Parse decodes the fixture and returns a fully-built appmodel.Program
// ready for the enqueuer. ctx is the interning context to build into;
// callers share one Context across every Source they load so references
// between, say, a program class and a library superclass intern to the
// same Type handles.
func (s *Source) Parse(ctx *appmodel.Context) (*appmodel.Program, error) {
	var classes []fixtureClass
	if err := json.Unmarshal(s.raw(), &classes); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if len(classes) > s.opts.MaxClasses {
		return nil, ErrTooManyClasses
	}

	prog := appmodel.NewProgram(ctx)
	for _, fc := range classes {
		cd, err := s.buildClass(ctx, fc)
		if err != nil {
			return nil, err
		}
		prog.AddClass(cd)
	}
	s.logger.Infof("ingest: loaded %d classes", len(classes))
	return prog, nil
}

func (s *Source) buildClass(ctx *appmodel.Context, fc fixtureClass) (*appmodel.ClassDef, error) {
	cd := &appmodel.ClassDef{
		Type:  ctx.InternType(fc.Type),
		Kind:  classKind(fc.Kind),
		Flags: appmodel.AccessFlags(fc.Flags),
	}
	if fc.Super != "" {
		cd.Super = ctx.InternType(fc.Super)
	}
	for _, i := range fc.Interfaces {
		cd.Interfaces = append(cd.Interfaces, ctx.InternType(i))
	}
	if fc.NestHost != "" {
		cd.NestHost = ctx.InternType(fc.NestHost)
	}
	for _, ff := range fc.Fields {
		fd := &appmodel.FieldDef{
			Ref:   ctx.InternField(cd.Type, ff.Name, ctx.InternType(ff.Type)),
			Flags: appmodel.AccessFlags(ff.Flags),
		}
		if fd.IsStatic() {
			cd.StaticFields = append(cd.StaticFields, fd)
		} else {
			cd.InstanceFields = append(cd.InstanceFields, fd)
		}
	}
	for _, fm := range fc.Methods {
		md, err := s.buildMethod(ctx, cd.Type, fm)
		if err != nil {
			return nil, err
		}
		if md.IsDirect() {
			cd.DirectMethods = append(cd.DirectMethods, md)
		} else {
			cd.VirtualMethods = append(cd.VirtualMethods, md)
		}
	}
	return cd, nil
}

func (s *Source) buildMethod(ctx *appmodel.Context, holder appmodel.Type, fm fixtureMethod) (*appmodel.MethodDef, error) {
	proto := appmodel.Proto{Return: ctx.InternType(fm.Return)}
	for _, p := range fm.Params {
		proto.Params = append(proto.Params, ctx.InternType(p))
	}
	md := &appmodel.MethodDef{
		Ref:   ctx.InternMethod(holder, fm.Name, proto),
		Flags: appmodel.AccessFlags(fm.Flags),
		Init:  appmodel.InitializerFlavor(fm.Init),
	}
	if appmodel.IsAbstractOrNative(md.Flags) {
		return md, nil
	}
	code := &appmodel.CodeBody{Form: appmodel.FormRaw, RegisterCount: fm.RegisterCount}
	for _, fi := range fm.Code {
		instr, err := s.buildInstr(ctx, fi)
		if err != nil {
			return nil, err
		}
		code.Raw = append(code.Raw, instr)
	}
	if len(fm.LocalsDebugNames) > 0 {
		names, err := decodeLocalsDebugNames(fm.LocalsDebugNames)
		if err != nil {
			return nil, fmt.Errorf("ingest: method %s: %w", fm.Name, err)
		}
		code.LocalsDebugNames = names
	}
	md.Code = code
	return md, nil
}

// decodeLocalsDebugNames turns a fixture's hex-encoded local debug-name
// table into the UTF-16-decoded strings appmodel.CodeBody carries,
// mirroring how a real class-file/DEX debug-info section is decoded.
func decodeLocalsDebugNames(raw map[int32]string) (map[int32]string, error) {
	names := make(map[int32]string, len(raw))
	for reg, encoded := range raw {
		b, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("register %d: %w", reg, err)
		}
		name, err := appmodel.DecodeUTF16LocalName(b)
		if err != nil {
			return nil, fmt.Errorf("register %d: %w", reg, err)
		}
		names[reg] = name
	}
	return names, nil
}

func (s *Source) buildInstr(ctx *appmodel.Context, fi fixtureInstr) (appmodel.RawInstruction, error) {
	instr := appmodel.RawInstruction{
		Op:            appmodel.Opcode(fi.Op),
		Registers:     fi.Registers,
		StringOperand: fi.StringOperand,
		IntOperand:    fi.IntOperand,
		Targets:       fi.Targets,
		Keys:          fi.Keys,
		ArrayData:     fi.ArrayData,
	}
	if fi.Type != "" {
		instr.Type = ctx.InternType(fi.Type)
	}
	if fi.Method != "" {
		m, err := ParseMethodRef(ctx, fi.Method)
		if err != nil {
			return instr, err
		}
		instr.Method = m
	}
	if fi.Field != "" {
		f, err := ParseFieldRef(ctx, fi.Field)
		if err != nil {
			return instr, err
		}
		instr.Field = f
	}
	return instr, nil
}

func classKind(s string) appmodel.ClassKind {
	switch s {
	case "classpath":
		return appmodel.ClassPath
	case "library":
		return appmodel.ClassLibrary
	default:
		return appmodel.ClassProgram
	}
}
