package generic

import (
	"fmt"
	"strings"
)

// Set is an unordered collection of distinct items.
type Set[T comparable] interface {
	Add(items ...T) int
	Clear()
	Contains(items ...T) bool
	ContainsAny(items ...T) bool
	Clone() Set[T]
	Count() int
	// Difference returns the items of this set that are not in other.
	Difference(other Set[T]) Set[T]
	Remove(item T) bool
	String() string
	ToSlice() []T
}

func NewSet[T comparable](items ...T) Set[T] {
	res := make(set[T], len(items))
	res.Add(items...)
	return &res
}

type set[T comparable] map[T]Void

// Add inserts items, returning how many were not already present.
func (s *set[T]) Add(items ...T) int {
	added := 0
	for _, item := range items {
		if _, found := (*s)[item]; !found {
			(*s)[item] = NewVoid()
			added++
		}
	}
	return added
}

func (s *set[T]) Clear() {
	*s = make(set[T])
}

func (s *set[T]) Clone() Set[T] {
	res := make(set[T], len(*s))
	for item := range *s {
		res[item] = NewVoid()
	}
	return &res
}

// Contains is true if every one of items is present.
func (s *set[T]) Contains(items ...T) bool {
	for _, item := range items {
		if _, found := (*s)[item]; !found {
			return false
		}
	}
	return true
}

// ContainsAny is true if at least one of items is present.
func (s *set[T]) ContainsAny(items ...T) bool {
	for _, item := range items {
		if _, found := (*s)[item]; found {
			return true
		}
	}
	return false
}

func (s *set[T]) Count() int {
	return len(*s)
}

func (s *set[T]) Difference(other Set[T]) Set[T] {
	res := make(set[T])
	for item := range *s {
		if !other.Contains(item) {
			res[item] = NewVoid()
		}
	}
	return &res
}

func (s *set[T]) Remove(item T) bool {
	if _, found := (*s)[item]; !found {
		return false
	}
	delete(*s, item)
	return true
}

func (s *set[T]) String() string {
	items := make([]string, 0, len(*s))
	for item := range *s {
		items = append(items, fmt.Sprint(item))
	}
	return "{" + strings.Join(items, ", ") + "}"
}

func (s *set[T]) ToSlice() []T {
	slice := make([]T, 0, s.Count())
	for item := range *s {
		slice = append(slice, item)
	}
	return slice
}
