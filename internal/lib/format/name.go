package format

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical форма имени группы машин, в которой оно хранится в базе
func Canonical(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Display только для вывода, хранимые данные не меняются
func Display(name string) string {
	return cases.Title(language.Und).String(Canonical(name))
}
