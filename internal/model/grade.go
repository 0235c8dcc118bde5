package model

import "github.com/rotisserie/eris"

// Grade is an ordinal label derived from a composite score. S > A > B > C.
type Grade string

const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
)

// Grades lists all grades from highest to lowest.
var Grades = []Grade{GradeS, GradeA, GradeB, GradeC}

// Ordinal returns 3 for S down to 0 for C, and -1 for an unknown grade.
func (g Grade) Ordinal() int {
	switch g {
	case GradeS:
		return 3
	case GradeA:
		return 2
	case GradeB:
		return 1
	case GradeC:
		return 0
	default:
		return -1
	}
}

// Valid reports whether g is one of S, A, B, C.
func (g Grade) Valid() bool {
	return g.Ordinal() >= 0
}

// ParseGrade validates a grade label.
func ParseGrade(s string) (Grade, error) {
	g := Grade(s)
	if !g.Valid() {
		return "", eris.Errorf("model: invalid grade %q", s)
	}
	return g, nil
}
