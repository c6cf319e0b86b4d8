package locale

import "fmt"

// Messages содержит все сообщения на русском языке
var Messages = map[string]string{
	// Общие сообщения
	"success":         "Успешно",
	"error":           "Ошибка",
	"invalid_request": "Неверный запрос",
	"internal_error":  "Внутренняя ошибка хранилища",

	// Аутентификация
	"login_successful":      "Вход выполнен успешно",
	"login_failed":          "Ошибка входа",
	"invalid_credentials":   "Неверное имя пользователя или пароль",
	"user_not_found":        "Пользователь не найден",
	"account_inactive":      "Аккаунт деактивирован",
	"account_blocked":       "Аккаунт заблокирован",
	"account_locked":        "Слишком много попыток входа. Попробуйте через %d мин.",
	"logout_successful":     "Выход выполнен",
	"logout_all_successful": "Выполнен выход на всех устройствах (%d)",

	// Регистрация
	"registration_successful": "Регистрация выполнена успешно",
	"registration_failed":     "Ошибка регистрации",
	"user_already_exists":     "Пользователь уже существует",
	"telegram_already_bound":  "Этот Telegram аккаунт уже зарегистрирован",
	"username_invalid":        "Имя пользователя может содержать латиницу, цифры, точку, дефис и подчеркивание (3-64 символа)",
	"weak_password":           "Пароль слишком слабый",

	// Приглашения
	"invite_created":        "Приглашение создано",
	"invite_not_found":      "Приглашение не найдено",
	"invite_inactive":       "Приглашение отключено",
	"invite_consumed":       "Приглашение уже использовано",
	"invite_expired":        "Срок действия приглашения истек",
	"invite_role_forbidden": "Нельзя приглашать с ролью выше собственной",

	// Пароли
	"password_changed":         "Пароль успешно изменен",
	"password_change_required": "Необходимо сменить временный пароль",
	"temp_password_issued":     "Временный пароль выдан, действует %d ч.",
	"temp_password_expired":    "Срок действия временного пароля истек",
	"password_same":            "Новый пароль совпадает с текущим",

	// Сессии
	"session_invalid": "Сессия недействительна",
	"session_expired": "Сессия истекла",

	// Администрирование
	"permission_denied": "Недостаточно прав",
	"user_blocked":      "Пользователь заблокирован",
	"user_unblocked":    "Пользователь разблокирован",
	"settings_updated":  "Настройки обновлены",

	// Мониторинг
	"service_healthy":   "Хранилище работает нормально",
	"service_unhealthy": "Проблемы с хранилищем",
}

// Get возвращает сообщение по ключу, или ключ если сообщение не найдено
func Get(key string) string {
	if msg, exists := Messages[key]; exists {
		return msg
	}
	return key
}

// Getf возвращает форматированное сообщение
func Getf(key string, args ...interface{}) string {
	msg := Get(key)
	return fmt.Sprintf(msg, args...)
}

// Has проверяет, существует ли сообщение для данного ключа
func Has(key string) bool {
	_, exists := Messages[key]
	return exists
}
