package core

import (
	"context"
	"testing"
)

func TestMethodContext_NestedScopes(t *testing.T) {
	ctx := context.Background()
	if HasMethodContext(ctx) {
		t.Fatal("fresh context must not carry a method scope")
	}

	outer := WithMethodContext(ctx, MethodContext{ClientID: "c1", MethodName: "outer"})
	inner := WithMethodContext(outer, MethodContext{ClientID: "c1", MethodName: "inner"})

	mc, ok := MethodContextFrom(inner)
	if !ok || mc.MethodName != "inner" {
		t.Fatalf("inner scope should hide outer, got %+v", mc)
	}
	mc, _ = MethodContextFrom(outer)
	if mc.MethodName != "outer" {
		t.Fatalf("outer scope lost: %+v", mc)
	}
}

func TestExecutionContext_RoundTrip(t *testing.T) {
	ctx := WithExecutionContext(context.Background(), ExecutionContext{ClientID: "c1", ExecutionID: "e1"})
	ec, ok := ExecutionContextFrom(ctx)
	if !ok || ec.ExecutionID != "e1" {
		t.Fatalf("execution scope lost: %+v", ec)
	}
}

func TestBeginContext_SuppressesAmbientScopes(t *testing.T) {
	ctx := WithMethodContext(context.Background(), MethodContext{ClientID: "c1", MethodName: "m"})
	ctx = WithExecutionContext(ctx, ExecutionContext{ClientID: "c1", ExecutionID: "e"})

	bare := BeginContext(ctx)
	if HasMethodContext(bare) || HasExecutionContext(bare) {
		t.Fatal("BeginContext must hide ambient scopes")
	}
	// The original context is untouched.
	if !HasMethodContext(ctx) || !HasExecutionContext(ctx) {
		t.Fatal("original context must keep its scopes")
	}
}

func TestToolCall_Normalize(t *testing.T) {
	tc := ToolCall{Function: ToolCallFunction{Name: "navigate"}}
	n := tc.Normalize()
	if n.ID == "" || n.Type != "function" {
		t.Fatalf("normalize incomplete: %+v", n)
	}
	keep := ToolCall{ID: "call_1", Type: "function"}
	if got := keep.Normalize(); got.ID != "call_1" {
		t.Fatalf("existing id must be preserved, got %+v", got)
	}
}
