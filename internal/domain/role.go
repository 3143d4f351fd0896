package domain

// Role is the closed set of portal roles.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// CanAuthor reports whether the role may create quizzes and practice sets.
func (r Role) CanAuthor() bool {
	return r == RoleInstructor || r == RoleAdmin
}

// CanPublishResults reports whether the role may approve pending results.
func (r Role) CanPublishResults() bool {
	return r == RoleAdmin
}

// Program is the academic track used to filter quizzes and practice sets.
type Program string

const (
	ProgramDiploma  Program = "Diploma"
	ProgramBachelor Program = "Bachelor"
	ProgramDHA      Program = "DHA"
	ProgramAll      Program = "All Programs"
)

// Matches reports whether content tagged with p is visible under filter.
// An empty filter and the All tag match everything.
func (p Program) Matches(filter Program) bool {
	return filter == "" || filter == ProgramAll || p == filter || p == ProgramAll
}
