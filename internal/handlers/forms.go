package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

// RegisterForm is the registration form.
type RegisterForm struct {
	Username        string `validate:"required,max=50,excludesall=@"`
	Email           string `validate:"required,email,max=254"`
	Password        string `validate:"required,max=72"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

// BookForm carries the editable book fields.
type BookForm struct {
	Title         string `validate:"required,max=255"`
	PublisherName string `validate:"required,max=255"`
	Description   string `validate:"required"`
	Category      string `validate:"required,category"`
}

// ProfileForm is the profile update form. Both fields are optional.
type ProfileForm struct {
	Bio            string
	ProfilePicture string `validate:"omitempty,max=2048,url|startswith=/uploads/"`
}

// NewValidator returns a validator with the "category" rule registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := models.ParseCategory(fl.Field().String())
		return err == nil
	})
	return v
}

func parseRegisterForm(r *http.Request) RegisterForm {
	return RegisterForm{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
}

func parseBookForm(r *http.Request) BookForm {
	return BookForm{
		Title:         strings.TrimSpace(r.PostFormValue("title")),
		PublisherName: strings.TrimSpace(r.PostFormValue("publisherName")),
		Description:   strings.TrimSpace(r.PostFormValue("description")),
		Category:      strings.TrimSpace(r.PostFormValue("category")),
	}
}

func parseProfileForm(r *http.Request) ProfileForm {
	return ProfileForm{
		Bio:            strings.TrimSpace(r.PostFormValue("bio")),
		ProfilePicture: strings.TrimSpace(r.PostFormValue("profilePicture")),
	}
}

// Input converts a validated form.
func (f BookForm) Input() models.BookInput {
	category, _ := models.ParseCategory(f.Category)
	return models.BookInput{
		Title:         f.Title,
		PublisherName: f.PublisherName,
		Description:   f.Description,
		Category:      category,
	}
}

func bookFormOf(b *models.BookDB) BookForm {
	return BookForm{
		Title:         b.Title,
		PublisherName: b.PublisherName,
		Description:   b.Description,
		Category:      b.Category.String(),
	}
}

// validationMessage turns the first failed rule into a user-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input"
	}

	fe := verrs[0]
	if fe.Field() == "ProfilePicture" {
		return "Profile picture must be a URL"
	}
	switch fe.Tag() {
	case "required":
		return "All fields are required"
	case "eqfield":
		return "Passwords do not match"
	case "email":
		return "Please enter a valid email"
	case "category":
		return "Please choose a valid category"
	case "max":
		return fe.Field() + " is too long"
	default:
		return "Invalid " + strings.ToLower(fe.Field())
	}
}
