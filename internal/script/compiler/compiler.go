// Package compiler walks a RogueScript AST in one forward pass and
// emits bytecode into chunk.Chunk buffers, per SPEC_FULL.md §4.3.
package compiler

import (
	"fmt"

	"roguevault/internal/script/ast"
	"roguevault/internal/script/chunk"
)

// Error is one compile-time failure: too many constants, too many
// locals, duplicate local, or jump too large. An invalid assignment
// target is rejected earlier, by the parser.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[line %d] compile error: %s", e.Line, e.Message)
}

type localRecord struct {
	name  string
	depth int
}

// compiler holds the compile-time state for one function (or the
// top-level script, itself modeled as a zero-arity function named
// "<script>"). A nested compiler is spawned per function definition
// and inherits no mutable state from its parent, per §4.3.
type compiler struct {
	enclosing  *compiler
	fn         *chunk.Function
	scopeDepth int
	locals     []localRecord
	errors     []error
}

func newCompiler(enclosing *compiler, name string, arity int) *compiler {
	c := &compiler{
		enclosing: enclosing,
		fn: &chunk.Function{
			Name:  name,
			Arity: arity,
			Chunk: chunk.New(),
		},
	}
	// Slot 0 of every frame holds the callee itself (vm.go's callValue
	// sets base to point there); reserve it with an unaddressable name
	// so the first real param/local lands at slot 1.
	c.locals = append(c.locals, localRecord{name: "", depth: 0})
	return c
}

// Compile compiles a whole program into the top-level script function.
// If any compile error was recorded, the second return value is
// non-empty and the script must not be run.
func Compile(program *ast.ProgramStmt) (*chunk.Function, []error) {
	c := newCompiler(nil, "<script>", 0)
	n := len(program.Statements)
	for i, stmt := range program.Statements {
		if i == n-1 {
			if expr, ok := stmt.(*ast.ExpressionStmt); ok {
				// Implicit script return: compile without the trailing
				// pop, then return the expression's value (§4.3).
				c.compileExpr(expr.Expression)
				c.emitOp(chunk.OpReturn, expr.Line())
				continue
			}
		}
		c.compileStmt(stmt)
	}
	if n == 0 {
		c.emitOp(chunk.OpNil, 0)
		c.emitOp(chunk.OpReturn, 0)
	} else if _, ok := program.Statements[n-1].(*ast.ExpressionStmt); !ok {
		c.emitOp(chunk.OpNil, 0)
		c.emitOp(chunk.OpReturn, 0)
	}
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return c.fn, nil
}

func (c *compiler) errorAt(line int, format string, args ...interface{}) {
	c.errors = append(c.errors, &Error{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (c *compiler) emit(b byte, line int)         { c.fn.Chunk.Write(b, line) }
func (c *compiler) emitOp(op chunk.OpCode, line int) { c.fn.Chunk.WriteOp(op, line) }

func (c *compiler) emitConstant(value interface{}, line int) {
	idx, err := c.fn.Chunk.AddConstant(value)
	if err != nil {
		c.errorAt(line, "%s", err.Error())
		return
	}
	c.emitOp(chunk.OpPushConst, line)
	c.emit(byte(idx), line)
}

// emitJump writes the opcode and a two-byte placeholder, returning the
// offset of the placeholder's first byte for later patching.
func (c *compiler) emitJump(op chunk.OpCode, line int) int {
	c.emitOp(op, line)
	c.emit(0xff, line)
	c.emit(0xff, line)
	return len(c.fn.Chunk.Code) - 2
}

func (c *compiler) patchJump(offset int, line int) {
	jump := len(c.fn.Chunk.Code) - offset - 2
	if jump > 65535 {
		c.errorAt(line, "jump too large")
		return
	}
	c.fn.Chunk.Code[offset] = byte(jump >> 8)
	c.fn.Chunk.Code[offset+1] = byte(jump)
}

func (c *compiler) emitLoop(loopStart int, line int) {
	c.emitOp(chunk.OpLoop, line)
	delta := len(c.fn.Chunk.Code) - loopStart + 2
	if delta > 65535 {
		c.errorAt(line, "jump too large")
		return
	}
	c.emit(byte(delta>>8), line)
	c.emit(byte(delta), line)
}

// ---- scopes and locals ----

func (c *compiler) beginScope() { c.scopeDepth++ }

func (c *compiler) endScope(line int) {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitOp(chunk.OpPop, line)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *compiler) addLocal(name string, line int) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == name {
			c.errorAt(line, "already a variable with this name in this scope")
			return
		}
	}
	// Local slots are one-byte operands.
	if len(c.locals) >= 256 {
		c.errorAt(line, "too many local variables in function")
		return
	}
	c.locals = append(c.locals, localRecord{name: name, depth: c.scopeDepth})
}

func (c *compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i
		}
	}
	return -1
}

func (c *compiler) nameConstant(name string, line int) byte {
	idx, err := c.fn.Chunk.AddConstant(name)
	if err != nil {
		c.errorAt(line, "%s", err.Error())
		return 0
	}
	return byte(idx)
}

// ---- statements ----

func (c *compiler) compileStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		c.compileExpr(s.Expression)
		c.emitOp(chunk.OpPop, s.Line())
	case *ast.PrintStmt:
		c.compileExpr(s.Expression)
		c.emitOp(chunk.OpPrint, s.Line())
	case *ast.VarDeclStmt:
		c.compileVarDecl(s)
	case *ast.BlockStmt:
		c.beginScope()
		for _, inner := range s.Statements {
			c.compileStmt(inner)
		}
		c.endScope(s.Line())
	case *ast.IfStmt:
		c.compileIf(s)
	case *ast.WhileStmt:
		c.compileWhile(s)
	case *ast.DefStmt:
		c.compileDef(s)
	case *ast.ReturnStmt:
		c.compileReturn(s)
	default:
		c.errorAt(stmt.Line(), "unhandled statement type")
	}
}

func (c *compiler) compileVarDecl(s *ast.VarDeclStmt) {
	if s.Initializer != nil {
		c.compileExpr(s.Initializer)
	} else {
		c.emitOp(chunk.OpNil, s.Line())
	}
	if c.scopeDepth > 0 {
		c.addLocal(s.Name, s.Line())
		return
	}
	nameIdx := c.nameConstant(s.Name, s.Line())
	c.emitOp(chunk.OpDefineGlobal, s.Line())
	c.emit(nameIdx, s.Line())
}

func (c *compiler) compileIf(s *ast.IfStmt) {
	c.compileExpr(s.Condition)
	thenJump := c.emitJump(chunk.OpJumpIfFalse, s.Line())
	c.emitOp(chunk.OpPop, s.Line())
	c.compileStmt(s.ThenBranch)

	elseJump := c.emitJump(chunk.OpJump, s.Line())
	c.patchJump(thenJump, s.Line())
	c.emitOp(chunk.OpPop, s.Line())

	if s.ElseBranch != nil {
		c.compileStmt(s.ElseBranch)
	}
	c.patchJump(elseJump, s.Line())
}

func (c *compiler) compileWhile(s *ast.WhileStmt) {
	loopStart := len(c.fn.Chunk.Code)
	c.compileExpr(s.Condition)
	exitJump := c.emitJump(chunk.OpJumpIfFalse, s.Line())
	c.emitOp(chunk.OpPop, s.Line())
	c.compileStmt(s.Body)
	c.emitLoop(loopStart, s.Line())
	c.patchJump(exitJump, s.Line())
	c.emitOp(chunk.OpPop, s.Line())
}

func (c *compiler) compileReturn(s *ast.ReturnStmt) {
	if s.Value != nil {
		c.compileExpr(s.Value)
	} else {
		c.emitOp(chunk.OpNil, s.Line())
	}
	c.emitOp(chunk.OpReturn, s.Line())
}

func (c *compiler) compileDef(s *ast.DefStmt) {
	fcomp := newCompiler(c, s.Name, len(s.Params))
	fcomp.beginScope()
	for _, param := range s.Params {
		fcomp.addLocal(param, s.Line())
	}
	for _, bodyStmt := range s.Body {
		fcomp.compileStmt(bodyStmt)
	}
	fcomp.emitOp(chunk.OpNil, s.Line())
	fcomp.emitOp(chunk.OpReturn, s.Line())
	c.errors = append(c.errors, fcomp.errors...)

	idx, err := c.fn.Chunk.AddConstant(fcomp.fn)
	if err != nil {
		c.errorAt(s.Line(), "%s", err.Error())
		return
	}
	c.emitOp(chunk.OpPushConst, s.Line())
	c.emit(byte(idx), s.Line())

	if c.scopeDepth > 0 {
		c.addLocal(s.Name, s.Line())
		return
	}
	nameIdx := c.nameConstant(s.Name, s.Line())
	c.emitOp(chunk.OpDefineGlobal, s.Line())
	c.emit(nameIdx, s.Line())
}

// ---- expressions ----

func (c *compiler) compileExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		c.compileLiteral(e)
	case *ast.GroupingExpr:
		c.compileExpr(e.Inner)
	case *ast.VariableExpr:
		c.compileVariable(e)
	case *ast.AssignExpr:
		c.compileAssign(e)
	case *ast.UnaryExpr:
		c.compileExpr(e.Right)
		switch e.Operator {
		case "!":
			c.emitOp(chunk.OpNot, e.Line())
		case "-":
			c.emitOp(chunk.OpNegate, e.Line())
		default:
			c.errorAt(e.Line(), "unknown unary operator %q", e.Operator)
		}
	case *ast.BinaryExpr:
		c.compileExpr(e.Left)
		c.compileExpr(e.Right)
		c.emitBinaryOp(e.Operator, e.Line())
	case *ast.LogicalExpr:
		c.compileLogical(e)
	case *ast.CallExpr:
		c.compileCall(e)
	default:
		c.errorAt(expr.Line(), "unhandled expression type")
	}
}

func (c *compiler) compileLiteral(e *ast.LiteralExpr) {
	switch v := e.Value.(type) {
	case nil:
		c.emitOp(chunk.OpNil, e.Line())
	case bool:
		if v {
			c.emitOp(chunk.OpTrue, e.Line())
		} else {
			c.emitOp(chunk.OpFalse, e.Line())
		}
	case float64:
		c.emitConstant(v, e.Line())
	case int64:
		c.emitConstant(v, e.Line())
	case string:
		c.emitConstant(v, e.Line())
	default:
		c.errorAt(e.Line(), "unsupported literal type %T", v)
	}
}

func (c *compiler) compileVariable(e *ast.VariableExpr) {
	if slot := c.resolveLocal(e.Name); slot != -1 {
		c.emitOp(chunk.OpGetLocal, e.Line())
		c.emit(byte(slot), e.Line())
		return
	}
	nameIdx := c.nameConstant(e.Name, e.Line())
	c.emitOp(chunk.OpGetGlobal, e.Line())
	c.emit(nameIdx, e.Line())
}

func (c *compiler) compileAssign(e *ast.AssignExpr) {
	c.compileExpr(e.Value)
	if slot := c.resolveLocal(e.Name); slot != -1 {
		c.emitOp(chunk.OpSetLocal, e.Line())
		c.emit(byte(slot), e.Line())
		return
	}
	nameIdx := c.nameConstant(e.Name, e.Line())
	c.emitOp(chunk.OpSetGlobal, e.Line())
	c.emit(nameIdx, e.Line())
}

// compileLogical implements the short-circuit codegen from §4.3:
// `and` -> left, jump-if-false END, pop, right, END
// `or`  -> left, jump-if-false ELSE, jump END, ELSE: pop, right, END
func (c *compiler) compileLogical(e *ast.LogicalExpr) {
	c.compileExpr(e.Left)
	switch e.Operator {
	case "and":
		end := c.emitJump(chunk.OpJumpIfFalse, e.Line())
		c.emitOp(chunk.OpPop, e.Line())
		c.compileExpr(e.Right)
		c.patchJump(end, e.Line())
	case "or":
		elseJump := c.emitJump(chunk.OpJumpIfFalse, e.Line())
		endJump := c.emitJump(chunk.OpJump, e.Line())
		c.patchJump(elseJump, e.Line())
		c.emitOp(chunk.OpPop, e.Line())
		c.compileExpr(e.Right)
		c.patchJump(endJump, e.Line())
	default:
		c.errorAt(e.Line(), "unknown logical operator %q", e.Operator)
	}
}

func (c *compiler) compileCall(e *ast.CallExpr) {
	c.compileExpr(e.Callee)
	for _, arg := range e.Args {
		c.compileExpr(arg)
	}
	if len(e.Args) > 255 {
		c.errorAt(e.Line(), "can't have more than 255 arguments")
		return
	}
	c.emitOp(chunk.OpCall, e.Line())
	c.emit(byte(len(e.Args)), e.Line())
}

func (c *compiler) emitBinaryOp(operator string, line int) {
	switch operator {
	case "+":
		c.emitOp(chunk.OpAdd, line)
	case "-":
		c.emitOp(chunk.OpSub, line)
	case "*":
		c.emitOp(chunk.OpMul, line)
	case "/":
		c.emitOp(chunk.OpDiv, line)
	case "==":
		c.emitOp(chunk.OpEqual, line)
	case "!=":
		c.emitOp(chunk.OpEqual, line)
		c.emitOp(chunk.OpNot, line)
	case ">":
		c.emitOp(chunk.OpGreater, line)
	case ">=":
		c.emitOp(chunk.OpLess, line)
		c.emitOp(chunk.OpNot, line)
	case "<":
		c.emitOp(chunk.OpLess, line)
	case "<=":
		c.emitOp(chunk.OpGreater, line)
		c.emitOp(chunk.OpNot, line)
	default:
		c.errorAt(line, "unknown binary operator %q", operator)
	}
}
