package main

import (
	"go/scanner"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestSourceIndentedWithTabs walks the module and fails on any line whose
// first token is preceded by spaces.  Raw string and comment bodies are
// skipped.
func TestSourceIndentedWithTabs(t *testing.T) {
	root := filepath.Join("..", "..")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		checkTabIndent(t, path, src)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func checkTabIndent(t *testing.T, path string, src []byte) {
	t.Helper()
	fset := token.NewFileSet()
	file := fset.AddFile(path, -1, len(src))
	var s scanner.Scanner
	s.Init(file, src, nil, scanner.ScanComments)

	lastLine := 0
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			return
		}
		line := file.Line(pos)
		if line != lastLine {
			indent := src[file.Offset(file.LineStart(line)):file.Offset(pos)]
			if strings.Trim(string(indent), "\t") != "" {
				t.Errorf("%s:%d: indented with spaces", path, line)
			}
		}
		// a multi-line raw string or comment ends on a later line
		lastLine = line + strings.Count(lit, "\n")
		if tok == token.SEMICOLON && lit == "\n" {
			lastLine = line
		}
	}
}
