package pgext

import (
	"context"
	"fmt"

	"github.com/woxQAQ/pgxbridge/api/catalog"
	"github.com/woxQAQ/pgxbridge/pkg/datum"
	"github.com/woxQAQ/pgxbridge/pkg/guard"
	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/memctx"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// DefaultSchema is used for functions registered without a schema.
const DefaultSchema = "public"

// Impl implements a host function in Go. args holds the decoded arguments
// in declaration order, nil for null. A nil result is a null result.
type Impl func(call *Call, args []any) (any, error)

// Function describes one host-callable function.
type Function struct {
	Name   string
	Schema string
	Args   []*datum.TypeDescriptor
	// ArgNames is empty or names every argument.
	ArgNames   []string
	Returns    *datum.TypeDescriptor
	Strict     bool
	Volatility catalog.Volatility
	Impl       Impl
	// Source is recorded in the catalog. Empty means "go".
	Source string
}

// QualifiedName returns schema.name, with DefaultSchema when Schema is
// unset. It is the key Register stores fn under.
func (f *Function) QualifiedName() string {
	schema := f.Schema
	if schema == "" {
		schema = DefaultSchema
	}
	return schema + "." + f.Name
}

// normalize fills defaults and checks the definition.
func (f *Function) normalize() error {
	fail := func(format string, args ...any) error {
		return &RegistrationError{Function: f.Name, Reason: fmt.Sprintf(format, args...)}
	}

	if f.Name == "" {
		return fail("name is empty")
	}
	if len(f.Name) >= pgsys.NAMEDATALEN {
		return fail("name longer than %d bytes", pgsys.NAMEDATALEN-1)
	}
	if f.Schema == "" {
		f.Schema = DefaultSchema
	}
	if len(f.Args) > pgsys.FUNC_MAX_ARGS {
		return fail("%d arguments exceed the host limit of %d", len(f.Args), pgsys.FUNC_MAX_ARGS)
	}
	for i, td := range f.Args {
		if td == nil {
			return fail("argument %d has no type", i+1)
		}
		if td.Kind == datum.KindVoid {
			return fail("argument %d cannot be void", i+1)
		}
	}
	if len(f.ArgNames) != 0 && len(f.ArgNames) != len(f.Args) {
		return fail("%d argument names for %d arguments", len(f.ArgNames), len(f.Args))
	}
	if f.Returns == nil {
		return fail("no return type")
	}
	if f.Impl == nil {
		return fail("no implementation")
	}
	v, err := catalog.ParseVolatility(string(f.Volatility))
	if err != nil {
		return fail("%v", err)
	}
	f.Volatility = v
	if f.Source == "" {
		f.Source = "go"
	}
	return nil
}

// Call is the per-invocation view handed to an Impl.
type Call struct {
	ctx     context.Context
	fn      *Function
	runtime *Runtime
}

// Context returns the invocation's context.
func (c *Call) Context() context.Context {
	return c.ctx
}

// Function returns the function being called.
func (c *Call) Function() *Function {
	return c.fn
}

// Codec returns the runtime's codec.
func (c *Call) Codec() *datum.Codec {
	return c.runtime.codec
}

// Guard returns the guard to wrap host calls made by the implementation.
func (c *Call) Guard() *guard.Guard {
	return c.runtime.guard
}

// Memory returns a scope over the caller's memory context, where results
// must be allocated.
func (c *Call) Memory() memctx.Scope {
	return c.runtime.memory.Current()
}

// NewInternal returns an empty internal value owned by this call.
func (c *Call) NewInternal() *datum.Internal {
	return c.runtime.codec.NewInternal()
}

// Report emits a message below ERROR through the host. Errors are
// returned from the Impl instead.
func (c *Call) Report(level host.Level, msg string) error {
	if level.Aborts() {
		return fmt.Errorf("level %s must be returned as an error, not reported", level)
	}
	state := host.SuccessfulCompletion
	if level >= host.Warning {
		state = host.WarningState
	}
	c.runtime.backend.Ereport(&host.ErrorData{
		Level:    level,
		SQLState: state,
		Message:  msg,
		Funcname: c.fn.QualifiedName(),
	})
	return nil
}

// Notice is Report at NOTICE with a formatted message.
func (c *Call) Notice(format string, args ...any) {
	_ = c.Report(host.Notice, fmt.Sprintf(format, args...))
}
