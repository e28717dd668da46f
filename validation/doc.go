// Package validation checks crmkit configuration and call arguments.
//
// Struct tag validation (go-playground/validator) is used for config
// structs; field names in messages come from the mapstructure tag so they
// match the YAML keys a user wrote.
//
//	type Config struct {
//	    BaseURL string `mapstructure:"base_url" validate:"required,url"`
//	}
//	err := validation.Validate(cfg)
//
// The programmatic Validator is used for call arguments:
//
//	err := validation.New().Min("page", page, 1).Range("size", size, 1, 500).Err()
//
// Both return an *errors.AppError with code INVALID_REQUEST.
package validation
