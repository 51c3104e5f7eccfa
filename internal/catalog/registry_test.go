package catalog

import (
	"context"
	"errors"
	"testing"
)

func noop(_ context.Context, _ map[string]any) (any, error) { return nil, nil }

func TestRegisterAndGet(t *testing.T) {
	cat := New()
	err := cat.Register(&OperationDescriptor{
		ID:     "mail.send",
		Invoke: noop,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	op := cat.Get("mail.send")
	if op == nil {
		t.Fatal("Get returned nil for registered operation")
	}
	if op.Mutability != ReadOnly {
		t.Errorf("mutability should default to READ_ONLY, got %s", op.Mutability)
	}
	if op.Cost != 1 {
		t.Errorf("cost should default to 1, got %d", op.Cost)
	}
	if !cat.Has("mail.send") {
		t.Error("Has should report registered operation")
	}
	if cat.Get("missing") != nil {
		t.Error("Get should return nil for unknown id")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	cat := New()
	op := &OperationDescriptor{ID: "x", Invoke: noop}
	if err := cat.Register(op); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := cat.Register(op); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("err = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		op   *OperationDescriptor
		want error
	}{
		{"empty id", &OperationDescriptor{Invoke: noop}, ErrOperationIDEmpty},
		{"nil invoke", &OperationDescriptor{ID: "x"}, ErrInvokeNil},
		{"duplicate param", &OperationDescriptor{
			ID:     "x",
			Invoke: noop,
			Params: []ParameterSpec{
				{Name: "a", Kind: KindString},
				{Name: "a", Kind: KindInt},
			},
		}, ErrDuplicateParam},
		{"unnamed param", &OperationDescriptor{
			ID:     "x",
			Invoke: noop,
			Params: []ParameterSpec{{Kind: KindString}},
		}, ErrParamNameEmpty},
		{"enum without constants", &OperationDescriptor{
			ID:     "x",
			Invoke: noop,
			Params: []ParameterSpec{{Name: "a", Kind: KindEnum}},
		}, ErrInvalidSpec},
		{"array without elem", &OperationDescriptor{
			ID:     "x",
			Invoke: noop,
			Params: []ParameterSpec{{Name: "a", Kind: KindArray}},
		}, ErrInvalidSpec},
		{"delegate without resolver id", &OperationDescriptor{
			ID:     "x",
			Invoke: noop,
			Params: []ParameterSpec{{Name: "a", Kind: KindDelegate}},
		}, ErrInvalidSpec},
		{"bad pattern", &OperationDescriptor{
			ID:     "x",
			Invoke: noop,
			Params: []ParameterSpec{{Name: "a", Kind: KindString, Pattern: "["}},
		}, ErrInvalidSpec},
		{"result key not produced", &OperationDescriptor{
			ID:        "x",
			Invoke:    noop,
			ResultKey: "out",
		}, ErrInvalidSpec},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := New().Register(tc.op); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestByMutability(t *testing.T) {
	cat := New()
	cat.MustRegister(&OperationDescriptor{ID: "b.read", Invoke: noop})
	cat.MustRegister(&OperationDescriptor{ID: "a.read", Invoke: noop})
	cat.MustRegister(&OperationDescriptor{ID: "c.write", Invoke: noop, Mutability: Mutate})

	reads := cat.ByMutability(ReadOnly)
	if len(reads) != 2 || reads[0].ID != "a.read" || reads[1].ID != "b.read" {
		t.Errorf("ByMutability(ReadOnly) = %v", ids(reads))
	}
	writes := cat.ByMutability(Mutate)
	if len(writes) != 1 || writes[0].ID != "c.write" {
		t.Errorf("ByMutability(Mutate) = %v", ids(writes))
	}
	if cat.Count() != 3 {
		t.Errorf("Count = %d", cat.Count())
	}
}

func ids(ops []*OperationDescriptor) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.ID
	}
	return out
}

func TestResolverRegistry(t *testing.T) {
	r := NewResolverRegistry()

	if err := r.Register("", ResolverFunc(func(_ context.Context, raw any) (any, error) { return raw, nil })); !errors.Is(err, ErrResolverIDEmpty) {
		t.Errorf("err = %v, want ErrResolverIDEmpty", err)
	}
	if err := r.Register("ref", nil); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("err = %v, want ErrInvalidSpec", err)
	}

	if err := r.Register("ref", ResolverFunc(func(_ context.Context, raw any) (any, error) { return raw, nil })); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, ok := r.Lookup("ref"); !ok {
		t.Error("Lookup should find registered resolver")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup should miss unknown id")
	}
}
