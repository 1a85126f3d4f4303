package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidFileChanged(t *testing.T) {
	data := []byte(`{"path":"views/home.rhy","content":"@if(x)\n@endif"}`)
	if err := Validate(SubjectFileChanged, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFileChangedWithoutContent(t *testing.T) {
	data := []byte(`{"path":"views/home.rhy"}`)
	if err := Validate(SubjectFileChanged, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFileChangedDeleted(t *testing.T) {
	data := []byte(`{"path":"views/old.rhy","deleted":true}`)
	if err := Validate(SubjectFileChanged, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFileChangedMissingPath(t *testing.T) {
	data := []byte(`{"content":"hello"}`)
	err := Validate(SubjectFileChanged, data)
	if err == nil {
		t.Fatal("expected error for missing path")
	}
	if !strings.Contains(err.Error(), "path is required") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestValidateValidDiagnostics(t *testing.T) {
	data := []byte(`{"path":"a.rhy","diagnostics":[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":3}},"severity":1,"source":"rhythm-structure","message":"Unclosed ` + "`@if`" + ` directive"}]}`)
	if err := Validate(SubjectDiagnostics, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	// Unknown subjects should pass (future-proof).
	data := []byte(`{"foo":"bar"}`)
	if err := Validate("unknown.subject", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	data := []byte(`{not valid json`)
	err := Validate(SubjectFileChanged, data)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestValidateWrongFieldType(t *testing.T) {
	data := []byte(`{"path":42}`)
	if err := Validate(SubjectFileChanged, data); err == nil {
		t.Fatal("expected schema error for numeric path")
	}
}
