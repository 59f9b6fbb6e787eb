package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"Ivan.Petrov@Example.COM",
		"user+tag@sub.domain.ru",
	}
	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}

	invalid := []string{
		"",
		"без-собаки",
		"two@@example.com",
		"user@domain",
		"юникод@example.com",
	}
	for _, email := range invalid {
		assert.Error(t, ValidateEmail(email), email)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Password1"))

	cases := map[string]string{
		"короткий":      "Ab1",
		"без заглавных": "password1",
		"без строчных":  "PASSWORD1",
		"без цифр":      "PasswordX",
	}
	for name, password := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidatePassword(password))
		})
	}
}

func TestValidateLength(t *testing.T) {
	assert.NoError(t, ValidateLength("заголовок", "нормальный заголовок", MinJobTitleLength, MaxJobTitleLength))
	assert.Error(t, ValidateLength("заголовок", "аб", MinJobTitleLength, MaxJobTitleLength))

	// Длина считается в рунах, не в байтах.
	assert.NoError(t, ValidateLength("заголовок", "ещё", 3, 3))
}

func TestValidateNonEmpty(t *testing.T) {
	assert.NoError(t, ValidateNonEmpty("поле", "значение"))
	assert.Error(t, ValidateNonEmpty("поле", "   "))
}
