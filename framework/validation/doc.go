// Package validation checks field rules written as pipe-separated strings.
//
// The container runs Struct on every singleton whose type carries
// `validate` tags before marking it ready:
//
//	type Mailer struct {
//	    Host string   `config:"" validate:"required"`
//	    Port int      `config:"" validate:"gte:1|lte:65535"`
//	    From string   `config:"" validate:"required|email"`
//	    To   []string `config:"" validate:"min:1"`
//	}
//
//	if errs := validation.Struct(m); errs.Has() {
//	    // errs.Bag: {"Port": ["The Port must be less than or equal to 65535."]}
//	}
//
// Flat string input is validated with Make:
//
//	v := validation.Make(map[string]string{"name": "Alice"}, validation.Rules{"name": "required|min:2"})
//	if v.Fails() { ... }
//
// # Available Rules
//
// Presence:
//   - required: non-empty string, non-zero number, non-empty collection, non-nil pointer
//   - nullable: stops further rules when the value is empty
//
// Size (numbers compare their value, collections their length, strings their rune count):
//   - min:n, max:n, size:n, between:lo,hi
//
// Numbers:
//   - numeric, integer, gt:n, gte:n, lt:n, lte:n
//
// Format:
//   - email, url, alpha, alpha_num, alpha_dash, regex:pattern, boolean
//
// Membership and comparison:
//   - in:a,b,c, not_in:a,b,c, same:Other, different:Other
//
// Rules for one field stop at the first failure.
package validation
