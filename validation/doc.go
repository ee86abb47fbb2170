// Package validation provides struct tag validation for springkit
// configuration types, built on the validator library.
//
//	type Settings struct {
//	    AppName string `validate:"required"`
//	    Port    int    `validate:"gt=0"`
//	}
//	err := validation.Validate(settings)
package validation
