// Package projection maps accessor functions to the struct field they read.
//
// An accessor is a function of one parameter whose body is a single return
// of a field of that parameter:
//
//	func(p *Person) string { return p.Name }
//
// Field and Fields find an accessor's source through the runtime symbol
// table and parse it; Resolve and ResolveSource work from source alone.
package projection

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"reflect"
	"runtime"
	"sync"

	"golang.org/x/tools/go/packages"
)

var (
	ErrNotAccessor = errors.New("projection: not an accessor")
	ErrNoSource    = errors.New("projection: source not available")
	ErrAmbiguous   = errors.New("projection: ambiguous accessor")
	ErrNotFound    = errors.New("projection: function not found")
	ErrWrongType   = errors.New("projection: accessor reads another type")
)

// parsed source files by absolute path
var files sync.Map

type parsedFile struct {
	fset *token.FileSet
	file *ast.File
}

func parseFile(filename string) (*parsedFile, error) {
	if pf, ok := files.Load(filename); ok {
		return pf.(*parsedFile), nil
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoSource)
	}
	pf, _ := files.LoadOrStore(filename, &parsedFile{fset: fset, file: f})
	return pf.(*parsedFile), nil
}

// Field returns the name of the field read by the accessor fn.
func Field(fn any) (string, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "", fmt.Errorf("%T: %w", fn, ErrNotAccessor)
	}
	if t := v.Type(); t.NumIn() != 1 || t.NumOut() != 1 {
		return "", fmt.Errorf("%v takes %d and returns %d: %w", t, t.NumIn(), t.NumOut(), ErrNotAccessor)
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return "", fmt.Errorf("%T: %w", fn, ErrNoSource)
	}
	filename, line := rf.FileLine(rf.Entry())
	pf, err := parseFile(filename)
	if err != nil {
		return "", err
	}

	var found []*ast.FuncType
	var bodies []*ast.BlockStmt
	ast.Inspect(pf.file, func(n ast.Node) bool {
		var ft *ast.FuncType
		var body *ast.BlockStmt
		switch d := n.(type) {
		case *ast.FuncLit:
			ft, body = d.Type, d.Body
		case *ast.FuncDecl:
			ft, body = d.Type, d.Body
		default:
			return true
		}
		if body != nil && pf.fset.Position(ft.Pos()).Line == line {
			found = append(found, ft)
			bodies = append(bodies, body)
		}
		return true
	})

	switch len(found) {
	case 0:
		return "", fmt.Errorf("%s at %s:%d: %w", rf.Name(), filename, line, ErrNoSource)
	case 1:
		a, err := accessorOf(found[0], bodies[0])
		if err != nil {
			return "", fmt.Errorf("%s: %w", rf.Name(), err)
		}
		return a.field, nil
	}
	return "", fmt.Errorf("%d functions at %s:%d: %w", len(found), filename, line, ErrAmbiguous)
}

// Fields resolves each accessor in order.
func Fields(fns ...any) ([]string, error) {
	names := make([]string, len(fns))
	for i, fn := range fns {
		name, err := Field(fn)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}
	return names, nil
}

// accessor is the shape recognized in a function body.
type accessor struct {
	paramType ast.Expr
	sel       *ast.SelectorExpr
	field     string
}

func accessorOf(ft *ast.FuncType, body *ast.BlockStmt) (*accessor, error) {
	if ft.Params == nil || len(ft.Params.List) != 1 || len(ft.Params.List[0].Names) != 1 {
		return nil, fmt.Errorf("want exactly one named parameter: %w", ErrNotAccessor)
	}
	param := ft.Params.List[0]
	if len(body.List) != 1 {
		return nil, fmt.Errorf("body has %d statements: %w", len(body.List), ErrNotAccessor)
	}
	ret, ok := body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return nil, fmt.Errorf("body is not a single return: %w", ErrNotAccessor)
	}
	sel, ok := unparen(ret.Results[0]).(*ast.SelectorExpr)
	if !ok {
		return nil, fmt.Errorf("result is not a field selection: %w", ErrNotAccessor)
	}
	x := unparen(sel.X)
	if star, ok := x.(*ast.StarExpr); ok {
		x = unparen(star.X)
	}
	id, ok := x.(*ast.Ident)
	if !ok || id.Name != param.Names[0].Name {
		return nil, fmt.Errorf("%s is not selected from the parameter: %w", sel.Sel.Name, ErrNotAccessor)
	}
	return &accessor{paramType: param.Type, sel: sel, field: sel.Sel.Name}, nil
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}

// baseTypeName returns the name of T in T, *T, pkg.T or *pkg.T.
func baseTypeName(e ast.Expr) string {
	e = unparen(e)
	if star, ok := e.(*ast.StarExpr); ok {
		e = unparen(star.X)
	}
	switch t := e.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return baseTypeName(t.X)
	case *ast.IndexListExpr:
		return baseTypeName(t.X)
	}
	return ""
}

func topLevelFuncs(files []*ast.File) map[string]*ast.FuncDecl {
	decls := make(map[string]*ast.FuncDecl)
	for _, f := range files {
		for _, d := range f.Decls {
			if fd, ok := d.(*ast.FuncDecl); ok && fd.Recv == nil && fd.Body != nil {
				decls[fd.Name.Name] = fd
			}
		}
	}
	return decls
}

// ResolveSource resolves the named top-level accessor functions of one
// source file. src is passed to go/parser as is and may be nil to read
// filename. Each accessor's parameter must be typeName or a pointer to it.
func ResolveSource(filename string, src any, typeName string, funcNames ...string) ([]string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	decls := topLevelFuncs([]*ast.File{f})

	names := make([]string, len(funcNames))
	for i, name := range funcNames {
		fd, ok := decls[name]
		if !ok {
			return nil, fmt.Errorf("%s in %s: %w", name, filename, ErrNotFound)
		}
		a, err := accessorOf(fd.Type, fd.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if got := baseTypeName(a.paramType); got != typeName {
			return nil, fmt.Errorf("%s takes %s, not %s: %w", name, got, typeName, ErrWrongType)
		}
		names[i] = a.field
	}
	return names, nil
}

// Resolve loads the package matching pattern and resolves its named
// top-level accessor functions against the type checker: every selection
// must be a field (possibly promoted) of typeName.
func Resolve(pattern, typeName string, funcNames ...string) ([]string, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", pattern, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", pattern)
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkg.Errors)
	}
	if pkg.Types == nil || pkg.TypesInfo == nil {
		return nil, fmt.Errorf("type information not available for %s", pattern)
	}
	if _, ok := pkg.Types.Scope().Lookup(typeName).(*types.TypeName); !ok {
		return nil, fmt.Errorf("type %s in %s: %w", typeName, pkg.PkgPath, ErrNotFound)
	}
	decls := topLevelFuncs(pkg.Syntax)

	names := make([]string, len(funcNames))
	for i, name := range funcNames {
		fd, ok := decls[name]
		if !ok {
			return nil, fmt.Errorf("%s in %s: %w", name, pkg.PkgPath, ErrNotFound)
		}
		a, err := accessorOf(fd.Type, fd.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		selection := pkg.TypesInfo.Selections[a.sel]
		if selection == nil || selection.Kind() != types.FieldVal {
			return nil, fmt.Errorf("%s: %s is not a field: %w", name, a.field, ErrNotAccessor)
		}
		if got := namedOf(selection.Recv()); got != typeName {
			return nil, fmt.Errorf("%s reads %s, not %s: %w", name, got, typeName, ErrWrongType)
		}
		names[i] = a.field
	}
	return names, nil
}

func namedOf(t types.Type) string {
	t = types.Unalias(t)
	if p, ok := t.(*types.Pointer); ok {
		t = types.Unalias(p.Elem())
	}
	if n, ok := t.(*types.Named); ok {
		return n.Obj().Name()
	}
	return t.String()
}
