// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package appmodel

// Proto is a method signature: ordered parameter types plus a return type,
// interned so that two methods with identical signatures share storage.
type Proto struct {
	Params []Type
	Return Type
}

// Key returns a string uniquely identifying p's structural shape,
// stable within one Context, for callers outside this package that need
// a map key (e.g. synthetic method memoization) but not a full MethodRef.
func (p Proto) Key() string { return p.equalKey() }

// equalKey returns the structural-equality key used while building the
// interning key (Key exposes the same string outside this package),
// since Proto itself does not carry identity the way
// Type/MethodRef/FieldRef do.
func (p Proto) equalKey() string {
	s := make([]byte, 0, len(p.Params)*4+4)
	for _, t := range p.Params {
		s = appendHandle(s, int32(t.id))
	}
	s = append(s, '>')
	s = appendHandle(s, int32(p.Return.id))
	return string(s)
}

func appendHandle(s []byte, id int32) []byte {
	for id > 0 {
		s = append(s, byte('a'+id%26))
		id /= 26
	}
	s = append(s, ',')
	return s
}

// MethodRef is an interned tuple (holder type, name, signature); equality
// is identity.
type MethodRef struct {
	id int32
}

// IsValid reports whether m was produced by a Context; the zero MethodRef
// is recognizably invalid, like the zero Type.
func (m MethodRef) IsValid() bool { return m.id != 0 }

type methodRefKey struct {
	holder Type
	name   string
	proto  string
}

type methodRefEntry struct {
	holder Type
	name   string
	proto  Proto
}

// InternMethod interns (holder, name, proto).
func (c *Context) InternMethod(holder Type, name string, proto Proto) MethodRef {
	key := methodRefKey{holder: holder, name: name, proto: proto.equalKey()}
	if m, ok := c.methodIdx[key]; ok {
		return m
	}
	id := int32(len(c.methods))
	c.methods = append(c.methods, methodRefEntry{holder: holder, name: name, proto: proto})
	m := MethodRef{id: id}
	c.methodIdx[key] = m
	return m
}

// MethodHolder returns m's declared holder type.
func (c *Context) MethodHolder(m MethodRef) Type { return c.methods[m.id].holder }

// MethodName returns m's method name.
func (c *Context) MethodName(m MethodRef) string { return c.methods[m.id].name }

// MethodProto returns m's signature.
func (c *Context) MethodProto(m MethodRef) Proto { return c.methods[m.id].proto }

// WithHolder returns the MethodRef for the same name+proto as m but
// re-homed on a different holder type, interning it if new. Used by the
// resolver when walking up a class chain looking for a declared method
// matching a symbolic reference.
func (c *Context) WithHolder(m MethodRef, holder Type) MethodRef {
	e := c.methods[m.id]
	return c.InternMethod(holder, e.name, e.proto)
}

// FieldRef is an interned tuple (holder type, name, signature); equality
// is identity.
type FieldRef struct {
	id int32
}

// IsValid reports whether f was produced by a Context.
func (f FieldRef) IsValid() bool { return f.id != 0 }

type fieldRefKey struct {
	holder Type
	name   string
	typ    Type
}

type fieldRefEntry struct {
	holder Type
	name   string
	typ    Type
}

// InternField interns (holder, name, type).
func (c *Context) InternField(holder Type, name string, typ Type) FieldRef {
	key := fieldRefKey{holder: holder, name: name, typ: typ}
	if f, ok := c.fieldIdx[key]; ok {
		return f
	}
	id := int32(len(c.fields))
	c.fields = append(c.fields, fieldRefEntry{holder: holder, name: name, typ: typ})
	f := FieldRef{id: id}
	c.fieldIdx[key] = f
	return f
}

// FieldHolder returns f's declared holder type.
func (c *Context) FieldHolder(f FieldRef) Type { return c.fields[f.id].holder }

// FieldName returns f's field name.
func (c *Context) FieldName(f FieldRef) string { return c.fields[f.id].name }

// FieldType returns f's declared type.
func (c *Context) FieldType(f FieldRef) Type { return c.fields[f.id].typ }

// WithFieldHolder re-homes f onto a different holder, as WithHolder does
// for methods.
func (c *Context) WithFieldHolder(f FieldRef, holder Type) FieldRef {
	e := c.fields[f.id]
	return c.InternField(holder, e.name, e.typ)
}
