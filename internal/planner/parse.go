package planner

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/bookrec/models"
	"github.com/mohammad-safakhou/bookrec/utils"
)

var (
	// ErrNoJSON means the model output contained no JSON object.
	ErrNoJSON = errors.New("no JSON object found in response")
	// ErrEmptyPlan means the plan has no usable sub-task.
	ErrEmptyPlan = errors.New("plan has no usable sub-tasks")
)

// ExtractJSON returns the first balanced top-level JSON object in text.
// Braces inside string literals are ignored, so fenced or prefixed model
// output is accepted. Balanced spans that are not valid JSON are skipped.
func ExtractJSON(text string) (string, bool) {
	start, depth := -1, 0
	inString, escaped := false, false
	for i, ch := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					if candidate := text[start : i+1]; json.Valid([]byte(candidate)) {
						return candidate, true
					}
					start = -1
				}
			}
		}
	}
	return "", false
}

// Parse turns raw model output into a Plan. It fails closed: output without a
// schema-valid JSON object, or whose sub-tasks all lack a search term, is
// rejected. Plans longer than maxTasks are truncated (maxTasks <= 0 keeps all).
// Sub-tasks with an empty search term are kept; the executor skips them.
func Parse(raw string, maxTasks int) (models.Plan, error) {
	jsonStr, ok := ExtractJSON(raw)
	if !ok {
		return models.Plan{}, ErrNoJSON
	}
	if err := ValidatePlanDocument([]byte(jsonStr)); err != nil {
		return models.Plan{}, err
	}
	var doc PlanDocument
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return models.Plan{}, fmt.Errorf("decode plan: %w", err)
	}

	tasks := doc.Tasks
	if maxTasks > 0 && len(tasks) > maxTasks {
		tasks = tasks[:maxTasks]
	}
	plan := models.Plan{SubTasks: make([]models.SubTask, 0, len(tasks)), Raw: raw, Dropped: len(doc.Tasks) - len(tasks)}
	usable := 0
	for i, t := range tasks {
		term := utils.CompactSpaces(t.SearchTerm)
		if term != "" {
			usable++
		}
		plan.SubTasks = append(plan.SubTasks, models.SubTask{
			Index:       i,
			Description: utils.CompactSpaces(t.Description),
			SearchTerm:  term,
		})
	}
	if usable == 0 {
		return models.Plan{}, ErrEmptyPlan
	}
	return plan, nil
}
