package uniqueid

import (
	"strings"
	"unicode"
)

// Generate строит детерминированный человекочитаемый идентификатор из имени
// и email: "Ray", "Soma", "k00lrav@gmail.com" -> "ray_soma_k00lrav_gmail_com".
// Любая последовательность не-алфанумерик схлопывается в один "_".
func Generate(email, firstName, lastName string) string {
	parts := []string{
		sanitize(firstName),
		sanitize(lastName),
		sanitize(email),
	}

	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "_")
}

// sanitize приводит строку к нижнему регистру и заменяет всё, кроме латинских
// букв и цифр, на "_", без ведущих/замыкающих и повторных подчёркиваний.
func sanitize(s string) string {
	var b strings.Builder
	lastUnderscore := true // подавляем ведущий "_"

	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return strings.TrimSuffix(b.String(), "_")
}
