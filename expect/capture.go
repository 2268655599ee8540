package expect

import (
	"go.starlark.net/starlark"
)

// captureSpec pairs a function identifier with the fixed value its
// stand-in returns.
type captureSpec struct {
	fn  starlark.Callable
	ret starlark.Value
}

// sideEffects implements side_effects(fns, within): every entry of fns is
// replaced by a recording stand-in for the duration of within, and the
// captured argument lists are returned in chronological call order,
// interleaved across all stand-ins.
//
// Starlark bindings freeze after module execution, so the stand-ins are
// injected: within receives one mock per entry, in entry order, and the
// original function is never called. The accumulator is owned by this one
// invocation and discarded afterwards; a raising body propagates its error
// after the stand-ins go out of scope.
func sideEffects(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fns, within starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fns", &fns, "within", &within); err != nil {
		return nil, err
	}
	specs, err := parseCaptureSpecs(fns)
	if err != nil {
		return nil, err
	}
	body, ok := within.(starlark.Callable)
	if !ok {
		return nil, usageErrorf("side_effects: within must be a callable, got %s", within.Type())
	}

	calls := starlark.NewList(nil)
	mocks := make(starlark.Tuple, len(specs))
	for i, cs := range specs {
		cs := cs
		impl := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			rec := make([]starlark.Value, len(args))
			copy(rec, args)
			argList := starlark.NewList(rec)
			if len(kwargs) > 0 {
				d := starlark.NewDict(len(kwargs))
				for _, kv := range kwargs {
					if err := d.SetKey(kv[0], kv[1]); err != nil {
						return nil, err
					}
				}
				if err := argList.Append(d); err != nil {
					return nil, err
				}
			}
			if err := calls.Append(argList); err != nil {
				return nil, err
			}
			return cs.ret, nil
		}
		mocks[i] = starlark.NewBuiltin(cs.fn.Name(), impl)
	}

	if _, err := starlark.Call(thread, body, mocks, nil); err != nil {
		return nil, err
	}
	return calls, nil
}

func parseCaptureSpecs(fns starlark.Value) ([]captureSpec, error) {
	seq, ok := fns.(starlark.Sequence)
	if !ok {
		return nil, usageErrorf("side_effects: fns must be a sequence of function specs, got %s", fns.Type())
	}
	if seq.Len() == 0 {
		return nil, UsageError("side_effects: fns must not be empty")
	}

	specs := make([]captureSpec, 0, seq.Len())
	seen := make(map[starlark.Callable]bool, seq.Len())
	iter := seq.Iterate()
	defer iter.Done()
	var entry starlark.Value
	for iter.Next(&entry) {
		cs := captureSpec{ret: starlark.None}
		switch e := entry.(type) {
		case starlark.Callable:
			cs.fn = e
		case starlark.Indexable:
			if e.Len() != 2 {
				return nil, usageErrorf("side_effects: a function spec is a callable or a (callable, return) pair, got %s", entry.String())
			}
			fn, ok := e.Index(0).(starlark.Callable)
			if !ok {
				return nil, usageErrorf("side_effects: a function spec is a callable or a (callable, return) pair, got %s", entry.String())
			}
			cs.fn = fn
			cs.ret = e.Index(1)
		default:
			return nil, usageErrorf("side_effects: a function spec is a callable or a (callable, return) pair, got %s", entry.Type())
		}
		if seen[cs.fn] {
			return nil, usageErrorf("side_effects: duplicate function %s", cs.fn.Name())
		}
		seen[cs.fn] = true
		specs = append(specs, cs)
	}
	return specs, nil
}
