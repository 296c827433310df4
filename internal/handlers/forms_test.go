package handlers

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationMessage(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name string
		form any
		want string
	}{
		{
			name: "username with at sign",
			form: RegisterForm{Username: "a@b", Email: "a@b.com", Password: "secret1", ConfirmPassword: "secret1"},
			want: "Invalid username",
		},
		{
			name: "password over bcrypt limit",
			form: RegisterForm{Username: "alice", Email: "a@b.com", Password: strings.Repeat("p", 73), ConfirmPassword: strings.Repeat("p", 73)},
			want: "Password is too long",
		},
		{
			name: "unknown category",
			form: BookForm{Title: "t", PublisherName: "p", Description: "d", Category: "fiction"},
			want: "Please choose a valid category",
		},
		{
			name: "uploaded picture path",
			form: ProfileForm{ProfilePicture: "/uploads/profiles/p.png"},
		},
		{
			name: "remote picture",
			form: ProfileForm{ProfilePicture: "https://example.com/p.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.form)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, validationMessage(err))
		})
	}

	assert.Equal(t, "Invalid input", validationMessage(errors.New("boom")))
}

func TestNewRenderer_AllPages(t *testing.T) {
	rd := mustRenderer(t)
	for _, page := range []string{PageLogin, PageRegister, PageHomepage, PageBookForm, PageDeleteBook, PageUserProfile, PageNotFound} {
		assert.Contains(t, rd.pages, page)
	}
}
