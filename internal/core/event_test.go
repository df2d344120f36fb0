package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

func TestOperations(t *testing.T) {
	tests := []struct {
		op     core.Operation
		a, b   any
		expect bool
	}{
		{core.Eq, 3, 3.0, true},
		{core.Eq, int64(3), uint8(3), true},
		{core.Eq, "s1", "s1", true},
		{core.Eq, "3", 3, false},
		{core.Eq, []string{"a"}, []string{"a"}, true},
		{core.Ne, "s1", "s2", true},
		{core.Ne, 2, 2, false},
		{core.Lt, 2, 3, true},
		{core.Lt, "apple", "banana", true},
		{core.Le, 3, 3, true},
		{core.Gt, 3.5, 3, true},
		{core.Ge, 2, 3, false},
		{core.Gt, nil, 1, false},
		{core.Lt, "1", 2, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, tt.op.Fn(tt.a, tt.b), "%v %s %v", tt.a, tt.op.Name, tt.b)
	}
}

func TestEvent_Describe(t *testing.T) {
	intent := &types.Intent{Name: "hello_intent"}
	assert.Equal(t, "intent_matched", core.IntentMatched(intent).String())
	assert.Equal(t, "hello_intent", core.IntentMatched(intent).Info())
	assert.Equal(t, "count >= 3", core.VariableMatchesOperation("count", core.Ge, 3).Info())
	assert.Equal(t, "application/pdf, text/csv", core.FileReceived("application/pdf", "text/csv").Info())
	assert.Equal(t, "", core.Auto().Info())
	assert.Equal(t, "is_vip", core.Custom("is_vip", nil, nil).String())
}
