package aggregate

import (
	"cmp"
	"slices"
	"strings"
)

type comparator[T any] func(a, b T) int

// sortRows сортировка только по ключам из белого списка, неизвестный ключ дает сортировку по умолчанию
func sortRows[T any](rows []T, allowed map[string]comparator[T], key, defaultKey string, desc bool) {
	c, ok := allowed[key]
	if !ok {
		c = allowed[defaultKey]
	}
	if c == nil {
		return
	}

	slices.SortStableFunc(rows, func(a, b T) int {
		if desc {
			return c(b, a)
		}
		return c(a, b)
	})
}

func byString[T any](get func(T) string) comparator[T] {
	return func(a, b T) int { return strings.Compare(strings.ToLower(get(a)), strings.ToLower(get(b))) }
}

func byNumber[T any, N cmp.Ordered](get func(T) N) comparator[T] {
	return func(a, b T) int { return cmp.Compare(get(a), get(b)) }
}

// then вторичный ключ при равенстве первого
func then[T any](first, second comparator[T]) comparator[T] {
	return func(a, b T) int {
		if r := first(a, b); r != 0 {
			return r
		}
		return second(a, b)
	}
}
