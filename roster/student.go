package roster

import (
	"context"
	"fmt"

	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// STUDENT
// =============================================================================

var Genders = generic.Enum{"male", "female"}

// Student carries only the fields checked here. Other fields pass through.
type Student struct {
	Firstname       string  `json:"firstname"`
	Surname         string  `json:"surname"`
	AdmissionNumber *string `json:"admissionNumber,omitempty"`
	ClassID         *string `json:"classId,omitempty"`
	Gender          *string `json:"gender,omitempty"`
	GuardianPhone   *string `json:"guardianPhone,omitempty"`
	GuardianEmail   *string `json:"guardianEmail,omitempty"`
}

// NewStudentValidator builds the students pipeline.
func NewStudentValidator(deps Deps) *generic.Pipeline[Student] {
	lookup := generic.Lookup{Reader: deps.Reader}

	return generic.NewPipeline[Student]("student", deps.Clock,
		generic.Step(func(s Student) error {
			if g := generic.OptionalText(s.Gender); g != "" {
				return Genders.Check("gender", "gender", g)
			}
			return nil
		}),
		generic.Step(func(s Student) error {
			if phone := generic.OptionalText(s.GuardianPhone); phone != "" && !generic.IsValidPhone(phone) {
				return generic.Rejectf(generic.KindFormat, "guardianPhone", "Invalid guardian phone number '%s'", phone)
			}
			if email := generic.OptionalText(s.GuardianEmail); email != "" && !generic.IsValidEmail(email) {
				return generic.Rejectf(generic.KindFormat, "guardianEmail", "Invalid guardian email address '%s'", email)
			}
			return nil
		}),
		func(ctx context.Context, a *generic.Attempt[Student]) error {
			adm := generic.OptionalText(a.Next.AdmissionNumber)
			if adm == "" {
				return nil
			}
			return lookup.Unique(ctx, CollectionStudents, a.Key,
				generic.Where(generic.EqFold("admissionNumber", adm)),
				fmt.Sprintf("Admission number '%s' already exists", adm))
		},
		func(ctx context.Context, a *generic.Attempt[Student]) error {
			class := generic.OptionalText(a.Next.ClassID)
			if class == "" {
				return nil
			}
			return lookup.Exists(ctx, CollectionClasses, class, "classId",
				fmt.Sprintf("Class '%s' not found", class))
		},
	)
}
