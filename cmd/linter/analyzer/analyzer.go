package analyzer

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

const (
	analyzerName = "locatorcalls"
	analyzerDoc  = "reports service locator lookups outside the composition root and lookups by names computed at runtime"

	containerPkgSuffix = "/internal/container"
	rootPkgSuffix      = "/internal/app"
)

// Analyzer checks that services are only looked up by name in the
// composition root.
var Analyzer = &analysis.Analyzer{
	Name:     analyzerName,
	Doc:      analyzerDoc,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if isLocatorPackage(pass.Pkg.Path()) {
		return nil, nil
	}
	allowed := isCompositionRoot(pass.Pkg.Path())

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.CallExpr)(nil),
	}

	insp.WithStack(nodeFilter, func(node ast.Node, push bool, stack []ast.Node) bool {
		if push {
			checkCall(pass, node.(*ast.CallExpr), stack, allowed)
		}
		return true
	})

	return nil, nil
}

func checkCall(pass *analysis.Pass, callExpr *ast.CallExpr, stack []ast.Node, allowed bool) {
	fn, ok := typeutil.Callee(pass.TypesInfo, callExpr).(*types.Func)
	if !ok || fn.Pkg() == nil || !isLocatorPackage(fn.Pkg().Path()) {
		return
	}

	name := lookupName(fn)
	if name == "" {
		return
	}

	if !allowed {
		pass.Reportf(callExpr.Pos(), "%s is only allowed in the composition root", name)
		return
	}

	if len(callExpr.Args) == 0 {
		return
	}
	nameArg := callExpr.Args[len(callExpr.Args)-1]
	if tv, ok := pass.TypesInfo.Types[nameArg]; ok && tv.Value != nil {
		return
	}
	if isEnclosingParam(pass, nameArg, stack) {
		return
	}
	pass.Reportf(nameArg.Pos(), "service name passed to %s must be a constant or a parameter", name)
}

// isEnclosingParam reports whether expr names a parameter of one of the
// functions enclosing the call.
func isEnclosingParam(pass *analysis.Pass, expr ast.Expr, stack []ast.Node) bool {
	ident, ok := ast.Unparen(expr).(*ast.Ident)
	if !ok {
		return false
	}
	obj, ok := pass.TypesInfo.Uses[ident].(*types.Var)
	if !ok {
		return false
	}

	for i := len(stack) - 1; i >= 0; i-- {
		var sig *types.Signature
		switch fn := stack[i].(type) {
		case *ast.FuncLit:
			sig, _ = pass.TypesInfo.TypeOf(fn).(*types.Signature)
		case *ast.FuncDecl:
			if def := pass.TypesInfo.Defs[fn.Name]; def != nil {
				sig, _ = def.Type().(*types.Signature)
			}
		}
		if sig == nil {
			continue
		}
		params := sig.Params()
		for j := 0; j < params.Len(); j++ {
			if params.At(j) == obj {
				return true
			}
		}
	}
	return false
}

// lookupName returns the display name of a locator lookup, or "" when fn
// is not one.
func lookupName(fn *types.Func) string {
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		return ""
	}

	if recv := sig.Recv(); recv != nil {
		if fn.Name() != "Query" {
			return ""
		}
		t := recv.Type()
		if ptr, ok := t.(*types.Pointer); ok {
			t = ptr.Elem()
		}
		if named, ok := t.(*types.Named); ok && named.Obj().Name() == "Scope" {
			return "Scope.Query"
		}
		return ""
	}

	if fn.Name() == "Resolve" {
		return "container.Resolve"
	}
	return ""
}

func isLocatorPackage(path string) bool {
	return strings.HasSuffix(path, containerPkgSuffix)
}

func isCompositionRoot(path string) bool {
	return strings.HasSuffix(path, rootPkgSuffix)
}
