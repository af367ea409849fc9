package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewUsesRegisteredMessage(t *testing.T) {
	err := New(CodeNotFound, "")
	if err.Message() != "resource not found" {
		t.Fatalf("expected registry message, got %q", err.Message())
	}
	if !strings.Contains(err.Error(), string(CodeNotFound)) {
		t.Fatalf("expected code in error string, got %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("disk full")
	err := Wrap(CodeStorageFailure, cause, "写入失败")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable via errors.Is")
	}
	if CodeOf(err) != CodeStorageFailure {
		t.Fatalf("unexpected code %s", CodeOf(err))
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected cause in message, got %q", err.Error())
	}
}

func TestCodeOfThroughWrapping(t *testing.T) {
	inner := New(CodeTimeout, "请求超时")
	outer := fmt.Errorf("outer context: %w", inner)

	if CodeOf(outer) != CodeTimeout {
		t.Fatalf("expected TIMEOUT through fmt wrapping, got %s", CodeOf(outer))
	}
	if CodeOf(stdErrors.New("plain")) != CodeUnknown {
		t.Fatalf("plain errors must map to UNKNOWN")
	}
	if CodeOf(nil) != CodeUnknown {
		t.Fatalf("nil must map to UNKNOWN")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeConflict, "资源冲突")
	other := New(CodeConflict, "不同的描述")

	if !stdErrors.Is(other, sentinel) {
		t.Fatalf("errors with the same code must match via errors.Is")
	}
	if stdErrors.Is(New(CodeNotFound, ""), sentinel) {
		t.Fatalf("different codes must not match")
	}
}

func TestOptionOverrides(t *testing.T) {
	err := New(CodeNotFound, "",
		WithRetryable(true),
		WithAlert(true),
		WithSeverity(SeverityCritical),
		WithMetadata("key", "value"),
	)

	if !err.Retryable() {
		t.Fatalf("retryable override lost")
	}
	if !err.ShouldAlert() {
		t.Fatalf("alert override lost")
	}
	if err.Severity() != SeverityCritical {
		t.Fatalf("severity override lost, got %s", err.Severity())
	}
	if err.Metadata()["key"] != "value" {
		t.Fatalf("metadata lost: %+v", err.Metadata())
	}
}

func TestRegisterCustomCode(t *testing.T) {
	const code Code = "TEST_CUSTOM"
	Register(code, Attributes{
		Message:   "custom failure",
		Severity:  SeverityWarning,
		Retryable: true,
	})

	err := New(code, "")
	if err.Message() != "custom failure" {
		t.Fatalf("registered message not applied: %q", err.Message())
	}
	if !RetryableError(err) {
		t.Fatalf("registered retryable attribute not applied")
	}
	if SeverityOf(err) != SeverityWarning {
		t.Fatalf("registered severity not applied: %s", SeverityOf(err))
	}
}

func TestAttributesOfUnknownCode(t *testing.T) {
	attr := AttributesOf("NEVER_REGISTERED")
	if attr.Severity != SeverityCritical || !attr.Alert {
		t.Fatalf("unregistered codes must fall back to UNKNOWN attributes: %+v", attr)
	}
}
