package schedule

import (
	"testing"
	"time"
)

func TestParseDateValue(t *testing.T) {
	want := Date(2024, time.February, 1)

	if got, ok := ParseDateValue("2024-02-01"); !ok || !got.Equal(want) {
		t.Errorf("string form: got %v, %v", got, ok)
	}
	if got, ok := ParseDateValue(time.Date(2024, time.February, 1, 13, 45, 0, 0, time.UTC)); !ok || !got.Equal(want) {
		t.Errorf("time form must normalize to midnight: got %v, %v", got, ok)
	}
	if _, ok := ParseDateValue(NullValue); ok {
		t.Error("null sentinel must not parse as a date")
	}
	if _, ok := ParseDateValue(42); ok {
		t.Error("numbers are not dates")
	}
	if _, ok := ParseDateValue((*time.Time)(nil)); ok {
		t.Error("nil pointer is no date")
	}
}

func TestTruthy(t *testing.T) {
	truthy := []interface{}{true, "x", 1, int64(2), 3.5, []interface{}{1}, map[string]interface{}{"k": 1}, time.Now()}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("expected %v (%T) truthy", v, v)
		}
	}
	falsy := []interface{}{nil, false, "", NullValue, 0, int64(0), 0.0, []interface{}{}, map[string]interface{}{}, time.Time{}}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("expected %v (%T) falsy", v, v)
		}
	}
}

func TestCheckCondition_StaticPropertyFallback(t *testing.T) {
	p := testProject(nil)
	p.CreateDraft = true
	env := NewEvalEnv(p, nil)

	attr := &Attribute{Identifier: "luodaanko_luonnos", StaticProperty: "create_draft"}
	if !env.CheckCondition(attr) {
		t.Error("static property fallback must apply when attribute data is empty")
	}

	// Attribute data, when present and truthy, wins without the fallback.
	env2 := NewEvalEnv(testProject(map[string]interface{}{"luodaanko_luonnos": true}), nil)
	if !env2.CheckCondition(attr) {
		t.Error("truthy attribute data must satisfy the condition")
	}

	if env.CheckCondition(&Attribute{Identifier: "tuntematon"}) {
		t.Error("missing attribute without fallback must not satisfy")
	}
}

func TestEvalEnvDeadlineDate_PreviewOverridesBoundAttribute(t *testing.T) {
	d := &Deadline{ID: "oas", Attribute: &Attribute{Identifier: "oas_pvm"}}

	env := NewEvalEnv(testProject(nil), map[string]interface{}{"oas_pvm": "2024-03-01"})
	stored := Date(2024, time.February, 1)
	env.SetDeadlineDate("oas", &stored)

	got := env.DeadlineDate(d)
	if got == nil || !got.Equal(Date(2024, time.March, 1)) {
		t.Errorf("preview value must win, got %v", got)
	}
}
