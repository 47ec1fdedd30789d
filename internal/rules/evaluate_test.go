package rules

import (
	"context"
	"testing"

	"github.com/neomind-iot/neomind/pkg/models"
)

func TestEvaluateCompareOperators(t *testing.T) {
	provider := &fakeProvider{values: map[string]models.MetricValue{
		"dev.metric": models.FloatValue(10),
	}}
	ctx := context.Background()

	cases := []struct {
		op   models.CompareOp
		val  float64
		want bool
	}{
		{models.OpGt, 5, true},
		{models.OpGt, 10, false},
		{models.OpGte, 10, true},
		{models.OpLt, 20, true},
		{models.OpLte, 10, true},
		{models.OpEq, 10, true},
		{models.OpEq, 10.00001, true},
		{models.OpNeq, 11, true},
	}
	for _, c := range cases {
		cond := models.Condition{Kind: models.ConditionCompare, Device: "dev", Metric: "metric", Op: c.op, Value: models.FloatValue(c.val)}
		got, err := Evaluate(ctx, cond, provider)
		if err != nil {
			t.Fatalf("evaluate %s %v: %v", c.op, c.val, err)
		}
		if got != c.want {
			t.Fatalf("%s %v: expected %v, got %v", c.op, c.val, c.want, got)
		}
	}
}

func TestEvaluateMissingMetricIsFalse(t *testing.T) {
	provider := &fakeProvider{values: map[string]models.MetricValue{}}
	cond := models.Condition{Kind: models.ConditionCompare, Device: "dev", Metric: "missing", Op: models.OpGt, Value: models.FloatValue(1)}
	got, err := Evaluate(context.Background(), cond, provider)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got {
		t.Fatal("expected false for missing metric")
	}
}

func TestEvaluateAndOrNot(t *testing.T) {
	provider := &fakeProvider{values: map[string]models.MetricValue{
		"dev.a": models.FloatValue(10),
		"dev.b": models.FloatValue(5),
	}}
	ctx := context.Background()

	gtA := models.Condition{Kind: models.ConditionCompare, Device: "dev", Metric: "a", Op: models.OpGt, Value: models.FloatValue(5)}
	ltB := models.Condition{Kind: models.ConditionCompare, Device: "dev", Metric: "b", Op: models.OpLt, Value: models.FloatValue(1)}

	and := models.Condition{Kind: models.ConditionAnd, Children: []models.Condition{gtA, ltB}}
	if got, _ := Evaluate(ctx, and, provider); got {
		t.Fatal("expected AND to be false")
	}

	or := models.Condition{Kind: models.ConditionOr, Children: []models.Condition{gtA, ltB}}
	if got, _ := Evaluate(ctx, or, provider); !got {
		t.Fatal("expected OR to be true")
	}

	not := models.Condition{Kind: models.ConditionNot, Children: []models.Condition{ltB}}
	if got, _ := Evaluate(ctx, not, provider); !got {
		t.Fatal("expected NOT to be true")
	}
}
