// Package compiler defines the port for the external Rhythm compiler.
package compiler

import "context"

// Message is a single compiler error or warning. Line and Column are 1-based.
type Message struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// Result holds everything the compiler reported for one source text.
type Result struct {
	Errors   []Message `json:"errors"`
	Warnings []Message `json:"warnings"`
}

// Compiler is the port interface for compiling template source.
type Compiler interface {
	Compile(ctx context.Context, content string) (*Result, error)
}

// Nop is a Compiler that reports nothing. It stands in when no compiler
// command is configured.
type Nop struct{}

// Compile implements Compiler.
func (Nop) Compile(context.Context, string) (*Result, error) {
	return &Result{}, nil
}
