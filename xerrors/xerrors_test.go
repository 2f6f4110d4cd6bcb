package xerrors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	// nil 错误应返回 nil
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("Wrap(nil) = %v，期望 nil", err)
	}

	base := errors.New("base error")
	wrapped := Wrap(base, "context")
	if wrapped.Error() != "context: base error" {
		t.Errorf("Wrap(err).Error() = %q，期望 %q", wrapped.Error(), "context: base error")
	}
	if !errors.Is(wrapped, base) {
		t.Error("errors.Is(wrapped, base) = false，期望 true")
	}
}

func TestWrapf(t *testing.T) {
	if err := Wrapf(nil, "cause %q", "OOM"); err != nil {
		t.Errorf("Wrapf(nil) = %v，期望 nil", err)
	}

	base := errors.New("not found")
	wrapped := Wrapf(base, "cause %q", "OOM")
	if wrapped.Error() != `cause "OOM": not found` {
		t.Errorf("Wrapf(err).Error() = %q", wrapped.Error())
	}
}

func TestInvalid(t *testing.T) {
	err := Invalid("backend %q", "etcd")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("Invalid() 应包装 ErrInvalidInput")
	}
	if err.Error() != `backend "etcd": invalid input` {
		t.Errorf("Invalid().Error() = %q", err.Error())
	}
}

func TestWithCode(t *testing.T) {
	if err := WithCode(nil, CodeDecode); err != nil {
		t.Errorf("WithCode(nil) = %v，期望 nil", err)
	}

	base := errors.New("unexpected EOF")
	coded := WithCode(base, CodeDecode)
	if coded.Error() != "[DECODE_FAILED] unexpected EOF" {
		t.Errorf("WithCode(err).Error() = %q", coded.Error())
	}
	if code := GetCode(coded); code != CodeDecode {
		t.Errorf("GetCode(coded) = %q，期望 %q", code, CodeDecode)
	}

	// 包装后的带码错误依然应有 code
	wrapped := Wrap(coded, "handle event")
	if code := GetCode(wrapped); code != CodeDecode {
		t.Errorf("GetCode(wrapped) = %q，期望 %q", code, CodeDecode)
	}
	if !errors.Is(wrapped, base) {
		t.Error("带码错误应保留错误链")
	}

	if code := GetCode(base); code != "" {
		t.Errorf("GetCode(plain) = %q，期望空", code)
	}
}

func TestMust(t *testing.T) {
	if v := Must(42, nil); v != 42 {
		t.Errorf("Must(42, nil) = %d，期望 42", v)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Must(_, err) 未触发 panic")
		}
	}()
	Must(0, errors.New("error"))
}

func TestCombine(t *testing.T) {
	if err := Combine(); err != nil {
		t.Errorf("Combine() = %v，期望 nil", err)
	}
	if err := Combine(nil, nil); err != nil {
		t.Errorf("Combine(nil, nil) = %v，期望 nil", err)
	}

	err1 := errors.New("error 1")
	if err := Combine(nil, err1, nil); err != err1 {
		t.Errorf("Combine(nil, err1, nil) = %v，期望 %v", err, err1)
	}

	err2 := errors.New("error 2")
	combined := Combine(err1, err2)
	multi, ok := combined.(*MultiError)
	if !ok {
		t.Fatalf("Combine(err1, err2) 类型 = %T，期望 *MultiError", combined)
	}
	if len(multi.Errors) != 2 {
		t.Errorf("multi.Errors 长度 = %d，期望 2", len(multi.Errors))
	}
	if combined.Error() != "error 1 (and 1 more errors)" {
		t.Errorf("combined.Error() = %q", combined.Error())
	}
	if !errors.Is(combined, err1) || !errors.Is(combined, err2) {
		t.Error("errors.Is 应能匹配 MultiError 中的每个错误")
	}
}

func TestSentinelErrors(t *testing.T) {
	err := Wrap(ErrNotFound, "cause lookup")
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(wrapped, ErrNotFound) = false，期望 true")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("errors.Is(wrapped, ErrUnavailable) = true，期望 false")
	}
}
