package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roguevault/internal/script/chunk"
	"roguevault/internal/script/compiler"
	"roguevault/internal/script/lexer"
	"roguevault/internal/script/parser"
)

func compile(t *testing.T, source string) *chunk.Function {
	t.Helper()
	toks, err := lexer.New(source).Tokenize()
	require.NoError(t, err)
	program, errs := parser.New(toks).Parse()
	require.Empty(t, errs)
	fn, errs := compiler.Compile(program)
	require.Empty(t, errs)
	return fn
}

func TestImplicitReturnOmitsTrailingPop(t *testing.T) {
	fn := compile(t, "1 + 2;")
	code := fn.Chunk.Code
	require.NotEmpty(t, code)
	// Last emitted opcode must be OpReturn, never OpPop followed by an
	// implicit nil return: the final expression statement's value is
	// the script's result (SPEC_FULL.md §4.3).
	assert.Equal(t, byte(chunk.OpReturn), code[len(code)-1])
	assert.NotContains(t, code, byte(chunk.OpPop))
}

func TestNonExpressionFinalStatementReturnsNil(t *testing.T) {
	fn := compile(t, "var a = 1;")
	code := fn.Chunk.Code
	// push-const(2) + define-global(2) + nil(1) + return(1)
	require.Len(t, code, 6)
	assert.Equal(t, byte(chunk.OpReturn), code[len(code)-1])
	assert.Equal(t, byte(chunk.OpNil), code[len(code)-2])
}

func TestEmptyProgramReturnsNil(t *testing.T) {
	fn := compile(t, "")
	assert.Equal(t, []byte{byte(chunk.OpNil), byte(chunk.OpReturn)}, fn.Chunk.Code)
}

func TestIfElseEmitsTwoPatchedJumps(t *testing.T) {
	fn := compile(t, "if (1) { 2; } else { 3; }")
	var jumpIfFalse, jump int
	for _, b := range fn.Chunk.Code {
		if b == byte(chunk.OpJumpIfFalse) {
			jumpIfFalse++
		}
		if b == byte(chunk.OpJump) {
			jump++
		}
	}
	assert.Equal(t, 1, jumpIfFalse)
	assert.Equal(t, 1, jump)
}

func TestWhileLoopEmitsBackwardsLoopOp(t *testing.T) {
	fn := compile(t, "while (1) { 2; }")
	assert.Contains(t, fn.Chunk.Code, byte(chunk.OpLoop))
}

func TestFunctionDeclarationNestsAFunctionConstant(t *testing.T) {
	fn := compile(t, "def add(a, b) { return a + b; }")
	var found *chunk.Function
	for _, c := range fn.Chunk.Constants {
		if nested, ok := c.(*chunk.Function); ok {
			found = nested
		}
	}
	require.NotNil(t, found, "expected a nested *chunk.Function constant")
	assert.Equal(t, "add", found.Name)
	assert.Equal(t, 2, found.Arity)
}

func TestLocalAssignmentUsesGetSetLocalNotGlobal(t *testing.T) {
	fn := compile(t, "def f(x) { x = x + 1; return x; }")
	var nested *chunk.Function
	for _, c := range fn.Chunk.Constants {
		if fnc, ok := c.(*chunk.Function); ok {
			nested = fnc
		}
	}
	require.NotNil(t, nested)
	assert.Contains(t, nested.Chunk.Code, byte(chunk.OpGetLocal))
	assert.Contains(t, nested.Chunk.Code, byte(chunk.OpSetLocal))
	assert.NotContains(t, nested.Chunk.Code, byte(chunk.OpGetGlobal))
	assert.NotContains(t, nested.Chunk.Code, byte(chunk.OpSetGlobal))
}

func TestTooManyConstantsIsCompileError(t *testing.T) {
	source := ""
	for i := 0; i < 300; i++ {
		source += "print 0.001;\n"
	}
	toks, err := lexer.New(source).Tokenize()
	require.NoError(t, err)
	program, perrs := parser.New(toks).Parse()
	require.Empty(t, perrs)
	_, errs := compiler.Compile(program)
	assert.NotEmpty(t, errs)
}

func TestInvalidAssignmentTargetNeverReachesCompiler(t *testing.T) {
	// "1 = 2" is rejected at parse time, so the compiler never sees it;
	// this documents that boundary rather than re-testing the parser.
	toks, err := lexer.New("1 = 2;").Tokenize()
	require.NoError(t, err)
	program, errs := parser.New(toks).Parse()
	assert.NotEmpty(t, errs)
	assert.Nil(t, program)
}
