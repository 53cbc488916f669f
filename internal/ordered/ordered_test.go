// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ordered

import (
	"reflect"
	"testing"
)

func TestSetPreservesInsertionOrder(t *testing.T) {
	s := NewSet[string]()
	for _, v := range []string{"c", "a", "b", "a", "c"} {
		s.Add(v)
	}
	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(s.Items(), want) {
		t.Errorf("Items() = %v, want %v", s.Items(), want)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	if s.Add("a") {
		t.Errorf("re-adding an element must report false")
	}
}

func TestMapPreservesInsertionOrderAcrossOverwrite(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("x", 1)
	m.Set("y", 2)
	m.Set("x", 3)
	if !reflect.DeepEqual(m.Keys(), []string{"x", "y"}) {
		t.Errorf("Keys() = %v, want [x y]", m.Keys())
	}
	if v, _ := m.Get("x"); v != 3 {
		t.Errorf("overwrite lost: got %d", v)
	}
	got := map[string]int{}
	m.Range(func(k string, v int) bool { got[k] = v; return true })
	if !reflect.DeepEqual(got, map[string]int{"x": 3, "y": 2}) {
		t.Errorf("Range walked %v", got)
	}
}

func TestMapGetOrInsert(t *testing.T) {
	m := NewMap[int, *[]int]()
	v := m.GetOrInsert(1, func() *[]int { return &[]int{} })
	*v = append(*v, 7)
	again := m.GetOrInsert(1, func() *[]int { t.Fatal("constructor must not re-run"); return nil })
	if len(*again) != 1 || (*again)[0] != 7 {
		t.Errorf("GetOrInsert returned a different value: %v", *again)
	}
}
