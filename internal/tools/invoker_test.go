package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"medagent-go/internal/store"
)

func newTestInvoker(t *testing.T, tool Tool, opts ...InvokerOption) *Invoker {
	t.Helper()
	registry := NewRegistry()
	registry.Register(tool)
	return NewInvoker(registry, zerolog.Nop(), opts...)
}

func TestInvokeUnknownTool(t *testing.T) {
	inv := newTestInvoker(t, &stubTool{name: "known"})

	result := inv.Invoke(context.Background(), InvocationRequest{Tool: "mystery"})
	if result.Success {
		t.Fatal("Expected failure for unknown tool")
	}
	if result.Error.Kind != KindUnknownTool {
		t.Errorf("Expected %s, got %s", KindUnknownTool, result.Error.Kind)
	}
}

func TestInvokeMissingRequiredParameter(t *testing.T) {
	tool := &stubTool{
		name: "lookup",
		params: []Param{
			{Name: "id", Type: TypeInteger, Required: true},
			{Name: "hint", Type: TypeString, Required: true},
		},
	}
	inv := newTestInvoker(t, tool)

	// Every required parameter, when omitted, must produce an
	// invalid-arguments failure naming exactly that parameter.
	for _, missing := range []string{"id", "hint"} {
		args := map[string]any{"id": float64(1), "hint": "x"}
		delete(args, missing)

		result := inv.Invoke(context.Background(), InvocationRequest{Tool: "lookup", Arguments: args})
		if result.Success {
			t.Fatalf("Expected failure when %s is missing", missing)
		}
		if result.Error.Kind != KindInvalidArguments {
			t.Errorf("Expected %s, got %s", KindInvalidArguments, result.Error.Kind)
		}
		if result.Error.Field != missing {
			t.Errorf("Expected field %s, got %s", missing, result.Error.Field)
		}
	}
}

func TestInvokeCoercesArguments(t *testing.T) {
	var seen Arguments
	tool := &stubTool{
		name: "lookup",
		params: []Param{
			{Name: "id", Type: TypeInteger, Required: true},
			{Name: "hint", Type: TypeString},
		},
		call: func(ctx context.Context, args Arguments) (any, error) {
			seen = args
			return "ok", nil
		},
	}
	inv := newTestInvoker(t, tool)

	cases := []struct {
		name string
		args map[string]any
		want int64
	}{
		{"json number", map[string]any{"id": float64(7)}, 7},
		{"numeric string", map[string]any{"id": "42"}, 42},
		{"json.Number", map[string]any{"id": json.Number("3")}, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := inv.Invoke(context.Background(), InvocationRequest{Tool: "lookup", Arguments: tc.args})
			if !result.Success {
				t.Fatalf("Expected success, got %v", result.Error)
			}
			if got := seen.Int64("id"); got != tc.want {
				t.Errorf("Expected id %d, got %d", tc.want, got)
			}
		})
	}
}

func TestInvokeRejectsMistypedArguments(t *testing.T) {
	tool := &stubTool{
		name: "lookup",
		params: []Param{
			{Name: "id", Type: TypeInteger, Required: true},
		},
	}
	inv := newTestInvoker(t, tool)

	for _, bad := range []any{"abc", 1.5, true, []any{1}} {
		result := inv.Invoke(context.Background(), InvocationRequest{
			Tool:      "lookup",
			Arguments: map[string]any{"id": bad},
		})
		if result.Success {
			t.Fatalf("Expected failure for id=%v", bad)
		}
		if result.Error.Kind != KindInvalidArguments {
			t.Errorf("Expected %s for id=%v, got %s", KindInvalidArguments, bad, result.Error.Kind)
		}
		if result.Error.Field != "id" {
			t.Errorf("Expected field id, got %s", result.Error.Field)
		}
	}
}

func TestInvokeDropsUndeclaredArguments(t *testing.T) {
	var seen Arguments
	tool := &stubTool{
		name: "lookup",
		params: []Param{
			{Name: "id", Type: TypeInteger, Required: true},
		},
		call: func(ctx context.Context, args Arguments) (any, error) {
			seen = args
			return "ok", nil
		},
	}
	inv := newTestInvoker(t, tool)

	result := inv.Invoke(context.Background(), InvocationRequest{
		Tool:      "lookup",
		Arguments: map[string]any{"id": float64(1), "surprise": "value"},
	})
	if !result.Success {
		t.Fatalf("Expected success, got %v", result.Error)
	}
	if _, present := seen["surprise"]; present {
		t.Error("Expected undeclared argument to be dropped")
	}
}

func TestInvokeMapsStoreNotFound(t *testing.T) {
	tool := &stubTool{
		name: "lookup",
		call: func(ctx context.Context, args Arguments) (any, error) {
			return nil, store.NewNotFoundError(store.EntityPatient, 42)
		},
	}
	inv := newTestInvoker(t, tool)

	result := inv.Invoke(context.Background(), InvocationRequest{Tool: "lookup"})
	if result.Success {
		t.Fatal("Expected failure")
	}
	if result.Error.Kind != KindNotFound {
		t.Errorf("Expected %s, got %s", KindNotFound, result.Error.Kind)
	}
	if result.Error.Entity != store.EntityPatient || result.Error.ID != 42 {
		t.Errorf("Expected patient/42, got %s/%d", result.Error.Entity, result.Error.ID)
	}
}

func TestInvokeMapsGenericErrorToStoreFailure(t *testing.T) {
	tool := &stubTool{
		name: "lookup",
		call: func(ctx context.Context, args Arguments) (any, error) {
			return nil, errors.New("disk on fire")
		},
	}
	inv := newTestInvoker(t, tool)

	result := inv.Invoke(context.Background(), InvocationRequest{Tool: "lookup"})
	if result.Success {
		t.Fatal("Expected failure")
	}
	if result.Error.Kind != KindStoreFailure {
		t.Errorf("Expected %s, got %s", KindStoreFailure, result.Error.Kind)
	}
}

type recordingMetrics struct {
	tool     string
	status   string
	observed time.Duration
	calls    int
}

func (m *recordingMetrics) RecordToolInvocation(tool, status string, d time.Duration) {
	m.tool = tool
	m.status = status
	m.observed = d
	m.calls++
}

func TestInvokeRecordsMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	inv := newTestInvoker(t, &stubTool{name: "lookup"}, WithMetrics(metrics))

	inv.Invoke(context.Background(), InvocationRequest{Tool: "lookup"})
	if metrics.calls != 1 {
		t.Fatalf("Expected 1 metric record, got %d", metrics.calls)
	}
	if metrics.tool != "lookup" || metrics.status != "success" {
		t.Errorf("Unexpected metric labels: %s/%s", metrics.tool, metrics.status)
	}

	inv.Invoke(context.Background(), InvocationRequest{Tool: "mystery"})
	if metrics.status != string(KindUnknownTool) {
		t.Errorf("Expected %s status, got %s", KindUnknownTool, metrics.status)
	}
}
