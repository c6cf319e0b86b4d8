package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,64}$`)

// PasswordRules требования к паролю
type PasswordRules struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordRules правила, если политика не задана
var DefaultPasswordRules = PasswordRules{
	MinLength:      8,
	RequireUpper:   true,
	RequireLower:   true,
	RequireDigit:   true,
	RequireSpecial: true,
}

// Валидация имени пользователя
func IsValidUsername(username string) bool {
	return usernameRegex.MatchString(strings.TrimSpace(username))
}

// Валидация пароля
func ValidatePassword(password string, rules PasswordRules) []string {
	var errors []string

	minLength := rules.MinLength
	if minLength <= 0 {
		minLength = DefaultPasswordRules.MinLength
	}

	if len(password) < minLength {
		errors = append(errors, fmt.Sprintf("Password must be at least %d characters long", minLength))
	}

	if len(password) > 128 {
		errors = append(errors, "Password must be less than 128 characters")
	}

	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if rules.RequireUpper && !hasUpper {
		errors = append(errors, "Password must contain at least one uppercase letter")
	}

	if rules.RequireLower && !hasLower {
		errors = append(errors, "Password must contain at least one lowercase letter")
	}

	if rules.RequireDigit && !hasNumber {
		errors = append(errors, "Password must contain at least one number")
	}

	if rules.RequireSpecial && !hasSpecial {
		errors = append(errors, "Password must contain at least one special character")
	}

	return errors
}

// Проверка силы пароля (0-4)
func PasswordStrength(password string) int {
	if len(password) == 0 {
		return 0
	}

	score := 0

	if len(password) >= 8 {
		score++
	}

	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if hasLower {
		score++
	}
	if hasUpper {
		score++
	}
	if hasNumber {
		score++
	}
	if hasSpecial {
		score++
	}

	if score > 4 {
		score = 4
	}

	return score
}
