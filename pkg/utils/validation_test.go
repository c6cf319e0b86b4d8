package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Простые unit тесты для функций валидации
func TestValidatePassword(t *testing.T) {
	// Тест валидного пароля
	t.Run("valid password", func(t *testing.T) {
		errors := ValidatePassword("SecurePass123!", DefaultPasswordRules)
		assert.Empty(t, errors)
	})

	// Тест короткого пароля
	t.Run("short password", func(t *testing.T) {
		errors := ValidatePassword("Short1!", DefaultPasswordRules)
		assert.Contains(t, errors, "Password must be at least 8 characters long")
	})

	// Тест пароля без заглавных букв
	t.Run("password without uppercase", func(t *testing.T) {
		errors := ValidatePassword("securepass123!", DefaultPasswordRules)
		assert.Contains(t, errors, "Password must contain at least one uppercase letter")
	})

	// Тест пароля без строчных букв
	t.Run("password without lowercase", func(t *testing.T) {
		errors := ValidatePassword("SECUREPASS123!", DefaultPasswordRules)
		assert.Contains(t, errors, "Password must contain at least one lowercase letter")
	})

	// Тест пароля без цифр
	t.Run("password without numbers", func(t *testing.T) {
		errors := ValidatePassword("SecurePass!", DefaultPasswordRules)
		assert.Contains(t, errors, "Password must contain at least one number")
	})

	// Тест пароля без спецсимволов
	t.Run("password without special characters", func(t *testing.T) {
		errors := ValidatePassword("SecurePass123", DefaultPasswordRules)
		assert.Contains(t, errors, "Password must contain at least one special character")
	})

	// Политика без требований к составу
	t.Run("relaxed rules", func(t *testing.T) {
		rules := PasswordRules{MinLength: 4}
		assert.Empty(t, ValidatePassword("abcd", rules))
		assert.Contains(t, ValidatePassword("abc", rules), "Password must be at least 4 characters long")
	})

	// Слишком длинный пароль
	t.Run("too long", func(t *testing.T) {
		errors := ValidatePassword("Aa1!"+strings.Repeat("x", 130), DefaultPasswordRules)
		assert.Contains(t, errors, "Password must be less than 128 characters")
	})
}

func TestGenerateRandomString(t *testing.T) {
	// Тест генерации строки
	t.Run("generate string", func(t *testing.T) {
		value, err := GenerateRandomString(12)
		assert.NoError(t, err)
		assert.Len(t, value, 12)
		// без похожих символов 0, O, 1, l, I
		assert.Regexp(t, `^[a-km-zA-HJ-NP-Z2-9]{12}$`, value)
	})

	// Тест некорректной длины
	t.Run("invalid length", func(t *testing.T) {
		value, err := GenerateRandomString(0)
		assert.Error(t, err)
		assert.Empty(t, value)

		value, err = GenerateRandomString(-1)
		assert.Error(t, err)
		assert.Empty(t, value)
	})
}

func TestGenerateSecureToken(t *testing.T) {
	first, err := GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.Len(t, first, 43)
	assert.NotEqual(t, first, second)
	assert.Regexp(t, `^[A-Za-z0-9_-]+$`, first)

	_, err = GenerateSecureToken(0)
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Secret123", 4)
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "Secret123"))
	assert.False(t, CheckPassword(hash, "secret123"))
	assert.False(t, CheckPassword("", "Secret123"))
}

func TestPasswordStrength(t *testing.T) {
	// Тест пустого пароля
	t.Run("empty password", func(t *testing.T) {
		assert.Equal(t, 0, PasswordStrength(""))
	})

	// Тест слабого пароля
	t.Run("weak password", func(t *testing.T) {
		assert.Equal(t, 2, PasswordStrength("password")) // длина + строчные
	})

	// Тест среднего пароля
	t.Run("medium password", func(t *testing.T) {
		assert.Equal(t, 4, PasswordStrength("Password123")) // длина + строчные + заглавные + цифры
	})

	// Тест сильного пароля
	t.Run("strong password", func(t *testing.T) {
		assert.Equal(t, 4, PasswordStrength("SecurePass123!")) // максимальный балл
	})
}

func TestIsValidUsername(t *testing.T) {
	validUsernames := []string{
		"alice",
		"bob_smith",
		"j.doe-42",
		"ABC",
	}

	for _, username := range validUsernames {
		t.Run("valid username: "+username, func(t *testing.T) {
			assert.True(t, IsValidUsername(username))
		})
	}

	invalidUsernames := []string{
		"",
		"ab",
		"иван",
		"john doe",
		"john@doe",
		strings.Repeat("a", 65),
	}

	for _, username := range invalidUsernames {
		t.Run("invalid username: "+username, func(t *testing.T) {
			assert.False(t, IsValidUsername(username))
		})
	}
}
