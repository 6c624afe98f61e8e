package user

import (
	"strings"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromagic/academy/core"
	appfs "github.com/neuromagic/academy/fs"
)

func newValidator(t *testing.T) *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	require.NoError(t, LoadCommonPasswords(appfs.FS))
	return validate
}

func TestPasswordPolicyViolation(t *testing.T) {
	require.NoError(t, LoadCommonPasswords(appfs.FS))

	tests := []struct {
		name  string
		pwd   string
		attrs []string
		want  string
	}{
		{name: "too short", pwd: "ab1", want: pwdMinLenTag},
		{name: "too long", pwd: strings.Repeat("x", pwdMaxLen+1), want: pwdMaxLenTag},
		{name: "whitespace", pwd: "pass word", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "similar to username", pwd: "johndoe1", attrs: []string{"johndoe", "jd@test.ru"}, want: pwdAttrSimTag},
		{name: "similar to email local part", pwd: "annasvetova", attrs: []string{"a1", "annasvetova@mail.ru"}, want: pwdAttrSimTag},
		{name: "common", pwd: "Password123", want: pwdNoCommonTag},
		{name: "valid", pwd: "Zx9!kq#Lm2", attrs: []string{"anna", "anna@test.ru"}, want: ""},
		{name: "valid cyrillic", pwd: "нейро-МАГИЯ-42", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, passwordPolicyViolation(tt.pwd, tt.attrs...))
		})
	}
}

func TestRegistration_Validate(t *testing.T) {
	validate := newValidator(t)

	fieldTags := func(err error) map[string]string {
		res := make(map[string]string)
		var verrs validator.ValidationErrors
		if errs, ok := err.(validator.ValidationErrors); ok {
			verrs = errs
		}
		for _, fe := range verrs {
			res[fe.Field()] = fe.Tag()
		}
		return res
	}

	tests := []struct {
		name     string
		reg      Registration
		wantTags map[string]string
	}{
		{
			name:     "required",
			reg:      Registration{},
			wantTags: map[string]string{"username": "required", "email": "required", "password": "required"},
		},
		{
			name:     "bad username and email",
			reg:      Registration{Username: "a b", Email: "nope", Password: "Zx9!kq#Lm2"},
			wantTags: map[string]string{"username": usernameTag, "email": "email"},
		},
		{
			name:     "weak password",
			reg:      Registration{Username: "anna", Email: "anna@test.ru", Password: "123456789"},
			wantTags: map[string]string{"password": pwdNotAllNumTag},
		},
		{
			name:     "valid after cleaning",
			reg:      Registration{Username: "  Anna_S ", Email: " Anna@Test.RU ", Password: "Zx9!kq#Lm2"},
			wantTags: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate(validate)
			assert.Equal(t, tt.wantTags, fieldTags(err))
		})
	}

	reg := Registration{Username: "  Anna_S ", Email: " Anna@Test.RU ", Password: "Zx9!kq#Lm2"}
	require.NoError(t, reg.Validate(validate))
	assert.Equal(t, "anna_s", reg.Username)
	assert.Equal(t, "anna@test.ru", reg.Email)
}

func TestConfirmRegistration_Validate(t *testing.T) {
	validate := newValidator(t)

	cr := ConfirmRegistration{Email: "anna@test.ru", Code: " 012345 "}
	assert.NoError(t, cr.Validate(validate))
	assert.Equal(t, "012345", cr.Code)

	cr = ConfirmRegistration{Email: "anna@test.ru", Code: "12a456"}
	assert.Error(t, cr.Validate(validate))

	cr = ConfirmRegistration{Email: "anna@test.ru", Code: "12345"}
	assert.Error(t, cr.Validate(validate))
}
