// Package ranking turns the accumulated run results into the final ordered
// recommendation list.
package ranking

import (
	"sort"

	"github.com/mohammad-safakhou/bookrec/models"
)

// Select flattens rc by ascending sub-task index, keeps the first occurrence
// of each candidate key and returns at most k candidates ordered by rating.
// Rated candidates always precede unrated ones; ties fall back to rating
// count and then to encounter order. rc is not modified.
func Select(rc *models.RunContext, k int) []models.BookCandidate {
	if rc == nil || k <= 0 {
		return []models.BookCandidate{}
	}
	pool := Flatten(rc.Ordered())
	Sort(pool)
	if len(pool) > k {
		pool = pool[:k]
	}
	return pool
}

// Flatten concatenates lists in order and drops repeated keys.
func Flatten(lists [][]models.BookCandidate) []models.BookCandidate {
	seen := make(map[string]struct{})
	out := make([]models.BookCandidate, 0)
	for _, list := range lists {
		for _, b := range list {
			key := b.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}

// Sort orders books in place; equal candidates keep their relative order.
func Sort(books []models.BookCandidate) {
	sort.SliceStable(books, func(i, j int) bool {
		return less(books[i], books[j])
	})
}

func less(a, b models.BookCandidate) bool {
	if a.HasRating() != b.HasRating() {
		return a.HasRating()
	}
	if a.HasRating() && *a.AverageRating != *b.AverageRating {
		return *a.AverageRating > *b.AverageRating
	}
	return count(a) > count(b)
}

func count(b models.BookCandidate) int {
	if b.RatingsCount == nil {
		return -1
	}
	return *b.RatingsCount
}
