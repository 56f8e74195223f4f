// Package engine evaluates scene scripts. It wraps zygomys in a sandboxed
// environment whose builtins fit oriented bounding boxes to entities and
// query them, and returns the resulting scene.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/boxfit/pkg/kernel"
	"github.com/chazu/boxfit/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Option configures an Engine.
type Option func(*Engine)

// WithSceneOptions sets the options every evaluated scene is created with.
func WithSceneOptions(opts ...scene.Option) Option {
	return func(e *Engine) {
		e.sceneOpts = append(e.sceneOpts, opts...)
	}
}

// WithTimeout overrides EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use; each
// call to Evaluate creates a fresh sandboxed environment and a fresh scene.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	kernel    kernel.Kernel
	sceneOpts []scene.Option
	timeout   time.Duration
}

// NewEngine creates an Engine that tessellates solids with k. k may be nil,
// in which case scripts can only describe entities by their points.
func NewEngine(k kernel.Kernel, opts ...Option) *Engine {
	e := &Engine{kernel: k, timeout: EvalTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs source and returns the scene it built.
//
// Return semantics:
//   - On success: returns scene + nil errors + nil error
//   - On parse/eval failure: returns nil scene + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*scene.Scene, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source)
}

// EvaluateContext is Evaluate bounded by ctx as well as the engine timeout.
func (e *Engine) EvaluateContext(ctx context.Context, source string) (*scene.Scene, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	// halt stops the interpreter at its next function call once the caller
	// has stopped waiting.
	halt, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if r == errHalted {
					ch <- evalResult{err: errHalted}
					return
				}
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		s, evalErrs, err := e.evaluate(halt, source)
		ch <- evalResult{scene: s, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ctx, ch, gen, e.timeout, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(halt context.Context, source string) (*scene.Scene, []EvalError, error) {
	s := scene.New(e.sceneOpts...)

	// Empty source is a valid program that produces an empty scene.
	if strings.TrimSpace(source) == "" {
		return s, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	// Stop only halts the parser, so a running program is interrupted from
	// the call hook instead. The panic unwinds to the recover in
	// EvaluateContext.
	env.AddPreHook(func(*zygo.Zlisp, string, []zygo.Sexp) {
		if halt.Err() != nil {
			panic(errHalted)
		}
	})

	registerBuiltins(env, &builder{scene: s, kernel: e.kernel})

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return s, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}

// Fork returns an Engine with the same kernel and options but its own
// generation counter, so its evaluations never supersede e's.
func (e *Engine) Fork() *Engine {
	return &Engine{
		kernel:    e.kernel,
		sceneOpts: append([]scene.Option(nil), e.sceneOpts...),
		timeout:   e.timeout,
	}
}
