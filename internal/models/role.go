package models

// Role роль пользователя; роли упорядочены по уровню доступа
type Role string

const (
	RoleGuest      Role = "guest"
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var roleLevels = map[Role]int{
	RoleGuest:      0,
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Level возвращает уровень роли, -1 для неизвестной
func (r Role) Level() int {
	if level, ok := roleLevels[r]; ok {
		return level
	}
	return -1
}

func (r Role) Valid() bool {
	return r.Level() >= 0
}

// AtLeast проверяет, что роль не ниже other
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.Level() >= other.Level()
}

func (r Role) String() string {
	return string(r)
}
