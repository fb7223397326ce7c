package main

import (
	"bytes"
	"testing"

	"github.com/mohammad-safakhou/bookrec/models"
)

func TestPrintRecommendation(t *testing.T) {
	rating, count := 4.5, 1200
	res := models.Recommendation{
		Books: []models.BookCandidate{
			{Title: "Dracula", Authors: []string{"Bram Stoker"}, AverageRating: &rating, RatingsCount: &count},
			{Title: "Untitled Horror"},
		},
		Plan:        []models.SubTask{{Index: 0}, {Index: 1}},
		FailedTasks: []int{1},
	}
	var buf bytes.Buffer
	printRecommendation(&buf, res, false)
	want := "1. Dracula by Bram Stoker (4.5, 1200 ratings)\n2. Untitled Horror\n\n1 of 2 searches failed.\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestPrintEmptyRecommendation(t *testing.T) {
	var buf bytes.Buffer
	printRecommendation(&buf, models.Recommendation{}, false)
	if buf.String() != "No books found for this request.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestPrintRecommendationVerboseShowsPlan(t *testing.T) {
	res := models.Recommendation{
		Plan: []models.SubTask{
			{Index: 0, Description: "Classic vampires", SearchTerm: "vampire classics"},
			{Index: 1, Description: "Modern", SearchTerm: "modern vampire"},
		},
		Books:       []models.BookCandidate{{Title: "Carmilla"}},
		FailedTasks: []int{1},
		Failures:    map[int]string{1: "timeout"},
	}
	var buf bytes.Buffer
	printRecommendation(&buf, res, true)
	want := "Plan:\n" +
		"  [0] Classic vampires (search: \"vampire classics\")\n" +
		"  [1] Modern (search: \"modern vampire\") failed: timeout\n" +
		"\n" +
		"1. Carmilla\n" +
		"\n1 of 2 searches failed.\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", buf.String(), want)
	}
}
