package scripting

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/wudi/pclkit/command"
)

// GojaFilter evaluates one compiled expression per command. It is not safe
// for concurrent use.
type GojaFilter struct {
	expr string
	prog *goja.Program
	vm   *goja.Runtime
}

// Compile compiles expr, a JavaScript expression over the global cmd.
func Compile(expr string) (*GojaFilter, error) {
	prog, err := goja.Compile("filter", expr, true)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	return &GojaFilter{expr: expr, prog: prog, vm: goja.New()}, nil
}

func (f *GojaFilter) String() string { return f.expr }

// Match reports the truthiness of the expression for cmd. Cancelling ctx
// interrupts a running evaluation.
func (f *GojaFilter) Match(ctx context.Context, cmd command.Command) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	stop := f.watch(ctx)
	defer stop()

	if err := f.vm.Set("cmd", map[string]interface{}(bind(cmd))); err != nil {
		return false, err
	}
	val, err := f.vm.RunProgram(f.prog)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return false, cause
			}
			return false, context.Canceled
		}
		return false, fmt.Errorf("filter at offset %d: %w", cmd.Offset(), err)
	}
	return val.ToBoolean(), nil
}

// watch interrupts the VM when ctx is done. The returned func waits for the
// watcher to exit before clearing the interrupt flag.
func (f *GojaFilter) watch(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			f.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
		f.vm.ClearInterrupt()
	}
}
