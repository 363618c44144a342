// Package pgext runs Go functions on behalf of host function calls.
//
// A Runtime holds the registered functions of one backend. Every call
// runs inside a boundary callback, so whatever the function does (return
// an error, panic, let a host error escape) the host frame receives an
// error record and never a Go unwind.
package pgext

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/api/catalog"
	"github.com/woxQAQ/pgxbridge/pkg/datum"
	"github.com/woxQAQ/pgxbridge/pkg/guard"
	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/memctx"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// Symbol is the C entry point every registered function is bound to.
const Symbol = "pgxbridge_call"

// Runtime dispatches host calls to registered functions. Registration is
// safe for concurrent use; calls follow the backend's single-threaded
// model.
type Runtime struct {
	backend host.Backend
	guard   *guard.Guard
	memory  *memctx.Bridge
	codec   *datum.Codec
	logger  *zap.Logger

	mu        sync.RWMutex
	functions map[string]*Function
}

// NewRuntime creates a runtime on backend.
func NewRuntime(backend host.Backend, logger *zap.Logger) *Runtime {
	return &Runtime{
		backend:   backend,
		guard:     guard.New(backend, logger),
		memory:    memctx.New(backend, logger),
		codec:     datum.NewCodec(backend, logger),
		logger:    logger.With(zap.String("component", "pgext")),
		functions: make(map[string]*Function),
	}
}

func (r *Runtime) Backend() host.Backend { return r.backend }

func (r *Runtime) Guard() *guard.Guard { return r.guard }

func (r *Runtime) Codec() *datum.Codec { return r.codec }

// Register adds fn. The definition is copied; later changes to fn have
// no effect.
func (r *Runtime) Register(fn *Function) error {
	if fn == nil {
		return &RegistrationError{Reason: "nil function"}
	}
	f := *fn
	f.Args = slices.Clone(fn.Args)
	f.ArgNames = slices.Clone(fn.ArgNames)
	if err := f.normalize(); err != nil {
		return err
	}

	key := f.QualifiedName()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[key]; exists {
		return &RegistrationError{Function: key, Reason: "already registered"}
	}
	r.functions[key] = &f
	r.logger.Debug("function registered",
		zap.String("function", key),
		zap.Int("args", len(f.Args)),
		zap.Stringer("returns", f.Returns),
		zap.String("source", f.Source),
	)
	return nil
}

// MustRegister is Register for package initialization; it panics on error.
func (r *Runtime) MustRegister(fn *Function) {
	if err := r.Register(fn); err != nil {
		panic(err)
	}
}

// Unregister removes a function by qualified name.
func (r *Runtime) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.functions[name]; !ok {
		return false
	}
	delete(r.functions, name)
	return true
}

// Lookup finds a function by qualified name. An unqualified name is
// looked up in the default schema.
func (r *Runtime) Lookup(name string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.functions[name]; ok {
		return fn, true
	}
	fn, ok := r.functions[DefaultSchema+"."+name]
	return fn, ok
}

// Functions returns the registered functions ordered by qualified name.
func (r *Runtime) Functions() []*Function {
	r.mu.RLock()
	out := make([]*Function, 0, len(r.functions))
	for _, fn := range r.functions {
		out = append(out, fn)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Function) int {
		return cmp.Compare(a.QualifiedName(), b.QualifiedName())
	})
	return out
}

// Invoke is InvokeContext with a background context.
func (r *Runtime) Invoke(name string, args []pgsys.Datum, nulls []bool) (pgsys.Datum, bool, *host.ErrorData) {
	return r.InvokeContext(context.Background(), name, args, nulls)
}

// InvokeContext calls the named function. It returns the result and its
// null flag, or the error record the calling host frame must raise.
//
// Arguments are decoded in a scratch context that is gone when the
// function body runs; the body and the result encoding run in the
// caller's context.
func (r *Runtime) InvokeContext(ctx context.Context, name string, args []pgsys.Datum, nulls []bool) (pgsys.Datum, bool, *host.ErrorData) {
	var (
		result pgsys.Datum
		isNull bool
	)
	edata := r.guard.Callback(func() error {
		fn, ok := r.Lookup(name)
		if !ok {
			return &UndefinedFunctionError{Name: name}
		}
		if len(args) != len(fn.Args) || len(nulls) != len(args) {
			return &ArgumentCountError{Function: fn.QualifiedName(), Want: len(fn.Args), Got: len(args)}
		}
		if fn.Strict && slices.Contains(nulls, true) {
			isNull = true
			return nil
		}

		decoded, err := r.decodeArgs(fn, args, nulls)
		if err != nil {
			return err
		}

		out, err := fn.Impl(&Call{ctx: ctx, fn: fn, runtime: r}, decoded)
		if err != nil {
			return err
		}
		if out == nil {
			isNull = true
			return nil
		}
		if in, ok := out.(*datum.Internal); ok {
			result, isNull = in.Datum()
			return nil
		}
		result, err = r.codec.Encode(out, fn.Returns)
		if err != nil {
			return fmt.Errorf("result of %s: %w", fn.QualifiedName(), err)
		}
		return nil
	})
	if edata != nil {
		r.logger.Debug("call failed",
			zap.String("function", name),
			zap.String("sqlstate", string(edata.SQLState)),
			zap.String("message", edata.Message),
		)
		return 0, true, edata
	}
	return result, isNull, nil
}

func (r *Runtime) decodeArgs(fn *Function, args []pgsys.Datum, nulls []bool) ([]any, error) {
	decoded := make([]any, len(args))
	decode := func(memctx.Scope) error {
		for i, d := range args {
			v, err := r.codec.Decode(d, nulls[i], fn.Args[i])
			if err != nil {
				return fmt.Errorf("argument %d of %s: %w", i+1, fn.QualifiedName(), err)
			}
			decoded[i] = v
		}
		return nil
	}

	// only varlena arguments can allocate while decoding
	if !slices.ContainsFunc(fn.Args, (*datum.TypeDescriptor).IsVarlena) {
		return decoded, decode(r.memory.Current())
	}
	err := r.memory.Transient(r.backend.CurrentMemoryContext(), "pgx arguments", decode)
	return decoded, err
}

// InvokeFcinfo calls the named function with the arguments in fcinfo and
// sets its null flag.
func (r *Runtime) InvokeFcinfo(name string, fcinfo *pgsys.FunctionCallInfoBaseData) (pgsys.Datum, *host.ErrorData) {
	n := pgsys.PG_NARGS(fcinfo)
	if n < 0 || n > pgsys.FUNC_MAX_ARGS {
		fcinfo.Isnull = true
		return 0, host.Errorf(host.InternalError, "call info for %s has %d arguments", name, n)
	}
	args := make([]pgsys.Datum, n)
	nulls := make([]bool, n)
	for i := range n {
		args[i] = pgsys.PG_GETARG_DATUM(fcinfo, i)
		nulls[i] = pgsys.PG_ARGISNULL(fcinfo, i)
	}
	d, isNull, edata := r.Invoke(name, args, nulls)
	fcinfo.Isnull = isNull
	return d, edata
}

// Catalog describes the registered functions and the types they use.
func (r *Runtime) Catalog() *catalog.Catalog {
	c := &catalog.Catalog{HostVersion: pgsys.PgMajor}
	seen := make(map[*datum.TypeDescriptor]bool)
	addType := func(td *datum.TypeDescriptor) {
		if !seen[td] {
			seen[td] = true
			c.Types = append(c.Types, typeInfo(td))
		}
	}

	for _, fn := range r.Functions() {
		info := catalog.FunctionInfo{
			Name:       fn.Name,
			Schema:     fn.Schema,
			ReturnType: fn.Returns.Name,
			Strict:     fn.Strict,
			Volatility: fn.Volatility,
			Symbol:     Symbol,
			Source:     fn.Source,
		}
		for i, td := range fn.Args {
			arg := catalog.FunctionArg{Type: td.Name}
			if len(fn.ArgNames) > 0 {
				arg.Name = fn.ArgNames[i]
			}
			info.Args = append(info.Args, arg)
			addType(td)
		}
		addType(fn.Returns)
		c.Functions = append(c.Functions, info)
	}
	slices.SortFunc(c.Types, func(a, b catalog.TypeInfo) int { return cmp.Compare(a.Name, b.Name) })
	return c
}

func typeInfo(td *datum.TypeDescriptor) catalog.TypeInfo {
	var category byte
	switch td.Kind {
	case datum.KindBool:
		category = 'B'
	case datum.KindInt2, datum.KindInt4, datum.KindInt8, datum.KindOid,
		datum.KindFloat4, datum.KindFloat8, datum.KindNumeric:
		category = 'N'
	case datum.KindText, datum.KindVarchar, datum.KindBpchar, datum.KindName:
		category = 'S'
	case datum.KindDate, datum.KindTimestamp, datum.KindTimestampTz:
		category = 'D'
	case datum.KindInterval:
		category = 'T'
	case datum.KindChar:
		category = 'Z'
	case datum.KindCString, datum.KindInternal, datum.KindVoid:
		category = 'P'
	default:
		category = 'U'
	}
	return catalog.TypeInfo{
		Name:     td.Name,
		Oid:      uint32(td.Oid),
		Len:      td.Len,
		ByVal:    td.ByVal,
		Align:    string(td.Align),
		Category: string(category),
	}
}
