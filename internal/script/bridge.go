// Package script embeds the build-script runtime (spec §4.4 "Script
// embedding"). Scripts are ordinary Go source interpreted by
// github.com/traefik/yaegi rather than compiled, so a build.lua-equivalent
// file can be loaded and re-loaded without invoking the Go toolchain.
package script

import (
	"fmt"
	"path"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Bridge owns the set of functions exposed to scripts (target,
// add_dependency, execute, and so on) and constructs one interpreter per
// coroutine. Registrations made before any Coroutine is created are visible
// to every coroutine; the scheduler registers its whole API once at
// startup.
type Bridge struct {
	pkgPath string
	symbols map[string]reflect.Value
}

// NewBridge constructs a Bridge. pkgPath is the synthetic import path
// scripts use to reach the registered API, e.g. "forge/forge".
func NewBridge(pkgPath string) *Bridge {
	return &Bridge{
		pkgPath: pkgPath,
		symbols: make(map[string]reflect.Value),
	}
}

// RegisterFunction exposes fn to scripts under name. fn must be a function
// value; it is wrapped with reflect so the same Bridge can register
// handwritten closures (postorder, execute, pushd...) uniformly.
func (b *Bridge) RegisterFunction(name string, fn interface{}) {
	b.symbols[name] = reflect.ValueOf(fn)
}

// symbolTable builds the interp.Exports map yaegi expects: one synthetic
// package containing every registered function. yaegi keys each package as
// "<import path>/<package name>", so the key is pkgPath followed by its last
// element.
func (b *Bridge) symbolTable() interp.Exports {
	pkgName := b.pkgPath + "/" + path.Base(b.pkgPath)
	table := make(map[string]reflect.Value, len(b.symbols))
	for name, v := range b.symbols {
		table[name] = v
	}
	return interp.Exports{pkgName: table}
}

// NewCoroutine creates an interpreter pre-loaded with the standard library
// and this Bridge's registered functions, ready to evaluate a script body.
// Each coroutine the scheduler spawns (root script, buildfile() calls,
// postorder visits) gets its own interpreter so yielding one never blocks
// another (spec §4.7).
func (b *Bridge) NewCoroutine() *Coroutine {
	i := interp.New(interp.Options{})
	_ = i.Use(stdlib.Symbols)
	_ = i.Use(b.symbolTable())
	return &Coroutine{interp: i}
}

// Coroutine wraps one yaegi interpreter instance. It is not a true
// stackful coroutine: yielding is modeled by the Scheduler driving the
// interpreter from a dedicated goroutine and blocking on a channel
// (spec §4.7 "coroutines are simulated with goroutines gated by a resume
// queue"), rather than by yaegi itself suspending mid-evaluation.
type Coroutine struct {
	interp *interp.Interp
}

// Load parses and evaluates source, which must define package main and a
// Run function. Load returns an error wrapping any yaegi compile error.
func (c *Coroutine) Load(source string) error {
	if _, err := c.interp.Eval(source); err != nil {
		return fmt.Errorf("script load failed: %w", err)
	}
	return nil
}

// Call resolves a function named symbol from the last-loaded script and
// invokes it. entry is typically "main.Run" for the top-level build.lua
// equivalent, or "main.<Target>" when a prototype's build action is
// invoked directly.
func (c *Coroutine) Call(entry string, args ...interface{}) ([]reflect.Value, error) {
	v, err := c.interp.Eval(entry)
	if err != nil {
		return nil, fmt.Errorf("script entry point %q not found: %w", entry, err)
	}
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("script entry point %q is not a function", entry)
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	return v.Call(in), nil
}
