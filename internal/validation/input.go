package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinNameLength         = 1
	MaxNameLength         = 100
	MaxBusinessNameLength = 200
	MaxBioLength          = 1000
	MaxLocationLength     = 100
	MaxMessageLength      = 500
	MaxReasonLength       = 500

	// Суммы в центах
	MinTipAmount   = 100    // $1
	MaxTipAmount   = 100000 // $1000
	MaxTokensPerOp = 100000 // разумный потолок одной операции
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateName проверяет имя или фамилию.
func ValidateName(fieldName, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s обязательно", fieldName)
	}

	if err := ValidateLength(fieldName, value, MinNameLength, MaxNameLength); err != nil {
		return err
	}

	nameRegex := regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ\s\-'.]+$`)
	if !nameRegex.MatchString(value) {
		return fmt.Errorf("%s содержит недопустимые символы", fieldName)
	}

	return nil
}

// ValidateTipAmount проверяет сумму чаевых в центах.
func ValidateTipAmount(amount int64) error {
	if amount < MinTipAmount {
		return fmt.Errorf("минимальная сумма чаевых %d центов", MinTipAmount)
	}
	if amount > MaxTipAmount {
		return fmt.Errorf("сумма чаевых не может превышать %d центов", MaxTipAmount)
	}
	return nil
}

// ValidateTokens проверяет количество токенов в одной операции.
func ValidateTokens(tokens int64) error {
	if tokens <= 0 {
		return fmt.Errorf("количество токенов должно быть положительным")
	}
	if tokens > MaxTokensPerOp {
		return fmt.Errorf("количество токенов не может превышать %d", MaxTokensPerOp)
	}
	return nil
}

// ValidateLocation проверяет местоположение.
func ValidateLocation(location *string) error {
	if location != nil && *location != "" {
		loc := strings.TrimSpace(*location)
		if err := ValidateLength("местоположение", loc, 0, MaxLocationLength); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBio проверяет описание профиля.
func ValidateBio(bio *string) error {
	if bio != nil && *bio != "" {
		if err := ValidateLength("описание", strings.TrimSpace(*bio), 0, MaxBioLength); err != nil {
			return err
		}
	}
	return nil
}
