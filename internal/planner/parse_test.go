package planner

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"Here is the plan:\n```json\n{\"tasks\":[{\"x\":\"}\"}]}\n```", `{"tasks":[{"x":"}"}]}`, true},
		{`prefix {"a":{"b":"\"{"}} trailing {"c":2}`, `{"a":{"b":"\"{"}}`, true},
		{`{'task': 'x'} then {"tasks":[]}`, `{"tasks":[]}`, true},
		{`[{'task': 'Query a book database'}]`, "", false},
		{`[1,2,3]`, "", false},
		{`{"unterminated": true`, "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractJSON(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ExtractJSON(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseSuccess(t *testing.T) {
	raw := "```json\n{\"tasks\":[{\"description\":\"Search for acclaimed horror\",\"search_term\":\"horror  fiction bestseller\"},{\"description\":\"Classic gothic\",\"search_term\":\"gothic horror classics\"}]}\n```"
	plan, err := Parse(raw, 5)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if plan.Len() != 2 {
		t.Fatalf("expected 2 sub-tasks, got %d", plan.Len())
	}
	if plan.SubTasks[0].SearchTerm != "horror fiction bestseller" || plan.SubTasks[0].Index != 0 {
		t.Fatalf("unexpected first sub-task %+v", plan.SubTasks[0])
	}
	if plan.SubTasks[1].Index != 1 || plan.SubTasks[1].SearchTerm != "gothic horror classics" {
		t.Fatalf("order not preserved: %+v", plan.SubTasks)
	}
	if plan.Raw != raw {
		t.Fatalf("raw output must be kept for diagnostics")
	}
}

func TestParseTruncatesToMax(t *testing.T) {
	raw := `{"tasks":[{"description":"a","search_term":"a"},{"description":"b","search_term":"b"},{"description":"c","search_term":"c"}]}`
	plan, err := Parse(raw, 2)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if plan.Len() != 2 || plan.SubTasks[1].SearchTerm != "b" {
		t.Fatalf("expected first two sub-tasks, got %+v", plan.SubTasks)
	}
	if plan.Dropped != 1 {
		t.Fatalf("expected one dropped sub-task, got %d", plan.Dropped)
	}
}

func TestParseEmptySearchTerms(t *testing.T) {
	some := `{"tasks":[{"description":"a","search_term":" "},{"description":"b","search_term":"vampire novels"}]}`
	plan, err := Parse(some, 5)
	if err != nil {
		t.Fatalf("partially empty plan must parse: %v", err)
	}
	if plan.Len() != 2 || plan.SubTasks[0].SearchTerm != "" {
		t.Fatalf("empty-term sub-task must be kept for skipping, got %+v", plan.SubTasks)
	}

	all := `{"tasks":[{"description":"a","search_term":""},{"description":"b","search_term":"  "}]}`
	if _, err := Parse(all, 5); !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
}

func TestParseSkipsInvalidLeadingObject(t *testing.T) {
	raw := `{draft} {"tasks":[{"description":"Find horror","search_term":"horror fiction"}]}`
	plan, err := Parse(raw, 5)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if plan.Len() != 1 || plan.SubTasks[0].SearchTerm != "horror fiction" {
		t.Fatalf("unexpected plan %+v", plan.SubTasks)
	}
}

func TestParseFailsClosed(t *testing.T) {
	if _, err := Parse("I cannot help with that.", 5); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
	if _, err := Parse(`[{'task': 'Query a book database'}]`, 5); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("python-style list must be rejected, got %v", err)
	}
	if _, err := Parse(`{"steps":[{"task":"search"}]}`, 5); err == nil {
		t.Fatalf("expected schema failure for wrong shape")
	}
}
