package roster

import "github.com/warp/finance-gate/generic"

const (
	CollectionStaff    = "staff"
	CollectionStudents = "students"
	CollectionClasses  = "classes"
)

type Deps struct {
	Reader generic.Reader
	Clock  generic.Clock
}

// Register routes staff and students to their pipelines. Classes are
// accepted without checks.
func Register(d *generic.Dispatcher, deps Deps) {
	d.Register(CollectionStaff, NewStaffValidator(deps))
	d.Register(CollectionStudents, NewStudentValidator(deps))
	d.Register(CollectionClasses, generic.PassThrough)
}
