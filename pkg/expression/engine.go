package expression

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine compiles skip conditions and edge conditions. The engine never
// evaluates them against stage data; compiled programs are cached so repeated
// graph validation stays cheap.
type Engine struct {
	programCache map[string]*vm.Program
	mu           sync.RWMutex
}

// NewEngine creates a new expression engine
func NewEngine() *Engine {
	return &Engine{
		programCache: make(map[string]*vm.Program),
	}
}

// Compile returns the cached boolean program for expression
func (e *Engine) Compile(expression string) (*vm.Program, error) {
	key := strings.TrimSpace(expression)
	if key == "" {
		return nil, fmt.Errorf("expression is empty")
	}

	e.mu.RLock()
	if prog, ok := e.programCache[key]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double check
	if prog, ok := e.programCache[key]; ok {
		return prog, nil
	}

	program, err := expr.Compile(key,
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
		expr.Function("LEN", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("LEN requires 1 argument")
			}
			s, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("LEN argument must be string")
			}
			return len(s), nil
		}),
	)
	if err != nil {
		return nil, err
	}

	e.programCache[key] = program
	return program, nil
}

// Validate reports whether expression compiles to a boolean condition
func (e *Engine) Validate(expression string) error {
	_, err := e.Compile(expression)
	return err
}

// Cached reports how many programs are cached
func (e *Engine) Cached() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.programCache)
}
