package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roguevault/internal/script/vm"
)

func interpret(t *testing.T, source string) (vm.Outcome, interface{}) {
	t.Helper()
	machine := vm.New()
	return machine.Interpret(source)
}

func TestArithmeticPromotesToFloatOnDivision(t *testing.T) {
	outcome, result := interpret(t, "(1 - 2) * (3 + 4) / 5;")
	require.Equal(t, vm.OK, outcome)
	assert.Equal(t, -1.4, result)
}

func TestIntegerArithmeticStaysInteger(t *testing.T) {
	outcome, result := interpret(t, "1 + 2 * 3;")
	require.Equal(t, vm.OK, outcome)
	assert.Equal(t, int64(7), result)
}

func TestLexicalShadowing(t *testing.T) {
	outcome, result := interpret(t, `var a = "global"; { var a = "local"; } a;`)
	require.Equal(t, vm.OK, outcome)
	assert.Equal(t, "global", result)
}

func TestFibonacci(t *testing.T) {
	outcome, result := interpret(t, `def fib(n){ if(n<2){return n;} return fib(n-1)+fib(n-2);} fib(10);`)
	require.Equal(t, vm.OK, outcome)
	assert.Equal(t, int64(55), result)
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	outcome, _ := interpret(t, "a + 10;")
	assert.Equal(t, vm.RuntimeError, outcome)
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	outcome, _ := interpret(t, "1 / 0;")
	assert.Equal(t, vm.RuntimeError, outcome)
}

func TestArityMismatchIsRuntimeError(t *testing.T) {
	outcome, _ := interpret(t, `def add(a, b){ return a + b; } add(1);`)
	assert.Equal(t, vm.RuntimeError, outcome)
}

func TestFunctionParameterIsIndependentOfCalleeSlot(t *testing.T) {
	// Regression test for an off-by-one in local-slot allocation: the
	// first parameter must read the argument, not the callee itself
	// sitting in frame slot 0.
	outcome, result := interpret(t, `def identity(x){ return x; } identity(42);`)
	require.Equal(t, vm.OK, outcome)
	assert.Equal(t, int64(42), result)
}

func TestInvalidCharacterIsCompileError(t *testing.T) {
	outcome, _ := interpret(t, "var a = 1 @ 2;")
	assert.Equal(t, vm.CompileError, outcome)
}

func TestWhileLoopAccumulates(t *testing.T) {
	outcome, result := interpret(t, `
		var i = 0;
		var total = 0;
		while (i < 5) {
			total = total + i;
			i = i + 1;
		}
		total;
	`)
	require.Equal(t, vm.OK, outcome)
	assert.Equal(t, int64(10), result)
}

func TestRegisteredNativeIsCallable(t *testing.T) {
	machine := vm.New()
	machine.RegisterNative("double", func(args []interface{}) (interface{}, error) {
		n, ok := args[0].(int64)
		if !ok {
			return nil, assert.AnError
		}
		return n * 2, nil
	})
	outcome, result := machine.Interpret("double(21);")
	require.Equal(t, vm.OK, outcome)
	assert.Equal(t, int64(42), result)
}

func TestGlobalsPersistAcrossInterpretCalls(t *testing.T) {
	machine := vm.New()
	outcome, _ := machine.Interpret("var counter = 1;")
	require.Equal(t, vm.OK, outcome)
	outcome, result := machine.Interpret("counter = counter + 1; counter;")
	require.Equal(t, vm.OK, outcome)
	assert.Equal(t, int64(2), result)
}
