package declare

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidDeclaration is returned for malformed declarations
var ErrInvalidDeclaration = errors.New("invalid declaration")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks declarations for shape errors that do not need the
// metamodel: missing names, malformed identifiers, and property ranges that
// name zero or several kinds.
func Validate(decls []EntityDeclaration) error {
	v := structValidator()

	var problems []string
	for i := range decls {
		entity := &decls[i]
		if err := v.Struct(entity); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					problems = append(problems, fmt.Sprintf("entity %s: %s failed %q", entityLabel(entity, i), fe.Namespace(), fe.Tag()))
				}
			} else {
				problems = append(problems, fmt.Sprintf("entity %s: %v", entityLabel(entity, i), err))
			}
		}

		for _, prop := range entity.Properties {
			kinds := 0
			if prop.Datatype != "" {
				kinds++
			}
			if prop.Enum != nil {
				kinds++
			}
			if prop.Ref != "" {
				kinds++
			}
			if kinds != 1 {
				problems = append(problems, fmt.Sprintf("entity %s: property %s must declare exactly one of datatype, enum or ref", entityLabel(entity, i), prop.Name))
			}
			if prop.Many && prop.Ref == "" {
				problems = append(problems, fmt.Sprintf("entity %s: property %s: many is only valid for ref properties", entityLabel(entity, i), prop.Name))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  %s", ErrInvalidDeclaration, strings.Join(problems, "\n  "))
	}
	return nil
}

func entityLabel(e *EntityDeclaration, index int) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("#%d", index)
}
