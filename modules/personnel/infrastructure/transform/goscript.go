package transform

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-faster/errors"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const goScriptFuncName = "Transform"

// allowedPackages are the only standard library packages a Go script may import.
var allowedPackages = []string{
	"strings/strings",
	"strconv/strconv",
	"unicode/unicode",
	"regexp/regexp",
	"time/time",
	"sort/sort",
	"fmt/fmt",
}

var sandboxSymbols = sync.OnceValue(func() interp.Exports {
	exports := interp.Exports{}
	for _, key := range allowedPackages {
		if symbols, ok := stdlib.Symbols[key]; ok {
			exports[key] = symbols
		}
	}
	return exports
})

// GoScript is a Go source file interpreted by yaegi. It declares package main and a
//
//	func Transform(doc map[string]any) map[string]any
//
// or a variant returning (map[string]any, error).
type GoScript struct {
	name string

	mu sync.Mutex
	fn reflect.Value
}

func NewGoScript(name, src string) (*GoScript, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(sandboxSymbols()); err != nil {
		return nil, errors.Wrap(err, "load script symbols")
	}
	if _, err := i.Eval(src); err != nil {
		return nil, errors.Wrapf(err, "interpret %s", name)
	}
	fn, err := i.Eval(goScriptFuncName)
	if err != nil {
		return nil, errors.Wrapf(err, "%s must define %s(map[string]any) map[string]any", name, goScriptFuncName)
	}
	if fn.Kind() != reflect.Func {
		return nil, errors.Errorf("%s: %s is not a function", name, goScriptFuncName)
	}
	t := fn.Type()
	if t.NumIn() != 1 || t.NumOut() < 1 || t.NumOut() > 2 {
		return nil, errors.Errorf("%s: %s must take one argument and return (map[string]any[, error])", name, goScriptFuncName)
	}
	return &GoScript{name: name, fn: fn}, nil
}

func (s *GoScript) Name() string { return s.name }

func (s *GoScript) Apply(ctx context.Context, doc map[string]any) (out map[string]any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%s panicked: %v", s.name, r)
		}
	}()

	results := s.fn.Call([]reflect.Value{reflect.ValueOf(doc)})
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok {
			return nil, errors.Wrapf(e, "%s", s.name)
		}
		return nil, errors.Errorf("%s returned a non-error second value", s.name)
	}
	if results[0].IsNil() {
		return nil, errors.Errorf("%s returned a nil document", s.name)
	}
	m, ok := results[0].Interface().(map[string]any)
	if !ok {
		return nil, errors.Errorf("%s must return map[string]any, got %s", s.name, results[0].Type())
	}
	return m, nil
}
