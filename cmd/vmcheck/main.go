// Program vmcheck is an invariant checker for the virtual-memory module.
//
// It loads every package in the module with golang.org/x/tools/go/packages
// (so it sees fully type-checked, import-resolved ASTs rather than parsing
// files in isolation the way a plain go/parser walk would) and flags calls
// to the supplemental page table's residency-mutating methods —
// SetResident, SetSwapped, SetNotLoaded, TakeSwapSlot — from outside the
// small set of packages the fault engine's design assumes are the only
// callers. Those methods must be exported for package vm and mmap
// to reach across package boundaries, so the compiler cannot enforce "only
// these callers" on its own; this tool is the substitute.
//
// @return None. Violations are printed to standard output and the process
// exits 1 if any are found.
package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"log"
	"os"
	"sort"

	"golang.org/x/tools/go/packages"
)

// residencyMethods are the spt.Entry methods that transition residency state.
var residencyMethods = map[string]bool{
	"SetResident":  true,
	"SetSwapped":   true,
	"SetNotLoaded": true,
	"TakeSwapSlot": true,
}

// allowedCallers are the packages permitted to call a residency-mutating method.
var allowedCallers = map[string]bool{
	"vmkern/src/vm":   true,
	"vmkern/src/mmap": true,
	"vmkern/src/spt":  true, // spt.Entry.Evict itself
}

// violation describes one disallowed call site.
type violation struct {
	pos    token.Position
	method string
	pkg    string
}

func main() {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedFiles}
	pkgs, err := packages.Load(cfg, "vmkern/...")
	if err != nil {
		log.Fatalf("vmcheck: loading packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		log.Fatalf("vmcheck: module has type errors")
	}

	var violations []violation
	for _, pkg := range pkgs {
		if allowedCallers[pkg.PkgPath] {
			continue
		}
		for _, file := range pkg.Syntax {
			ast.Inspect(file, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				sel, ok := call.Fun.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				if !residencyMethods[sel.Sel.Name] {
					return true
				}
				violations = append(violations, violation{
					pos:    pkg.Fset.Position(sel.Sel.Pos()),
					method: sel.Sel.Name,
					pkg:    pkg.PkgPath,
				})
				return true
			})
		}
	}

	sort.Slice(violations, func(i, j int) bool {
		return violations[i].pos.String() < violations[j].pos.String()
	})
	for _, v := range violations {
		fmt.Printf("%s: package %s calls spt.Entry.%s, which only vm/mmap should call\n", v.pos, v.pkg, v.method)
	}
	if len(violations) > 0 {
		os.Exit(1)
	}
}
