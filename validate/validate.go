// Package validate checks user-entered forms before they reach the forum.
//
// Each Check function trims its input, validates it and returns the cleaned
// form. Failures come back as a *ValidationError listing every failing field.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jacentio/cookhouse/forum"
)

// Field length limits.
const (
	TitleMin    = 16
	TitleMax    = 64
	ContentMin  = 32
	ContentMax  = 8192
	NameMin     = 4
	NameMax     = 32
	PasswordMin = 6
	PasswordMax = 72
	MaxTags     = 16
	TagMax      = 32
)

// FieldError describes one failing field.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

// ValidationError lists the failing fields of a form.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// PostDraft is the create-post form.
type PostDraft struct {
	Title    string         `json:"title" validate:"min=16,max=64"`
	Content  string         `json:"content" validate:"min=32,max=8192"`
	Category forum.Category `json:"category" validate:"category"`
	Tags     []string       `json:"tags" validate:"max=16,dive,max=32"`
	ImageURL string         `json:"imageUrl" validate:"omitempty,url"`
}

// NewPost converts a checked draft into the forum's create input.
func (d PostDraft) NewPost(author string) forum.NewPost {
	return forum.NewPost{
		Author:   author,
		Title:    d.Title,
		Content:  d.Content,
		Category: d.Category,
		Tags:     d.Tags,
		ImageURL: d.ImageURL,
	}
}

// Registration is the sign-up form. The first name doubles as the handle.
type Registration struct {
	FirstName string `json:"firstName" validate:"min=4,max=32,excludesall=/"`
	LastName  string `json:"lastName" validate:"min=4,max=32"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72,passwordbytes"`
}

// Handle is the forum handle the registration claims.
func (r Registration) Handle() string {
	return r.FirstName
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	val.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return slices.Contains(forum.Categories, forum.Category(fl.Field().String()))
	})
	// bcrypt hashes at most 72 bytes; max counts runes.
	val.RegisterValidation("passwordbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= PasswordMax
	})
	return val
}

// CheckPost trims and validates a post draft.
func CheckPost(d PostDraft) (PostDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(d.Content)
	d.ImageURL = strings.TrimSpace(d.ImageURL)
	d.Tags = NormalizeTags(d.Tags)
	return d, check(v.Struct(d))
}

// CheckPostPatch validates the fields a post edit sets, trimming them in place.
func CheckPostPatch(p forum.PostPatch) (forum.PostPatch, error) {
	var fields []FieldError
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
		fields = append(fields, varErrors("title", v.Var(t, "min=16,max=64"))...)
	}
	if p.Content != nil {
		c := strings.TrimSpace(*p.Content)
		p.Content = &c
		fields = append(fields, varErrors("content", v.Var(c, "min=32,max=8192"))...)
	}
	if p.Category != nil {
		fields = append(fields, varErrors("category", v.Var(string(*p.Category), "category"))...)
	}
	if p.Tags != nil {
		tags := NormalizeTags(*p.Tags)
		p.Tags = &tags
		fields = append(fields, varErrors("tags", v.Var(tags, "max=16,dive,max=32"))...)
	}
	if len(fields) > 0 {
		return p, &ValidationError{Fields: fields}
	}
	return p, nil
}

// CheckRegistration trims and validates a registration form.
func CheckRegistration(r Registration) (Registration, error) {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	return r, check(v.Struct(r))
}

// NormalizeTags lowercases and trims tags, dropping blanks and duplicates.
// Order of first appearance is kept.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func check(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = fieldError(fe.Field(), fe)
	}
	return &ValidationError{Fields: fields}
}

func varErrors(field string, err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = fieldError(field, fe)
	}
	return out
}

func fieldError(field string, fe validator.FieldError) FieldError {
	return FieldError{Field: field, Rule: fe.Tag(), Message: message(field, fe)}
}

// lengths bounds the string fields with min/max rules.
var lengths = map[string][2]int{
	"title":     {TitleMin, TitleMax},
	"content":   {ContentMin, ContentMax},
	"firstName": {NameMin, NameMax},
	"lastName":  {NameMin, NameMax},
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s allows at most %s entries", field, fe.Param())
		}
		if b, ok := lengths[field]; ok {
			return fmt.Sprintf("%s must be between %d and %d characters", field, b[0], b[1])
		}
		if fe.Tag() == "min" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "category":
		return field + " must be one of the forum categories"
	case "passwordbytes":
		return fmt.Sprintf("%s must be at most %d bytes", field, PasswordMax)
	case "excludesall":
		return field + " contains invalid characters"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
