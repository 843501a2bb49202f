// Package grade implements the letter-grade scale used by reviews and the
// aggregation of many grades into an average grade.
package grade

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// Grade is one of the 13 letter grades, from F (worst) to A+ (best).
// Grades compare with the usual operators: a better grade is greater.
// The zero value is not a valid Grade.
type Grade uint8

const (
	F Grade = iota + 1
	DMinus
	D
	DPlus
	CMinus
	C
	CPlus
	BMinus
	B
	BPlus
	AMinus
	A
	APlus
)

// ErrInvalid is returned when a value is not one of the 13 letter grades.
var ErrInvalid = errors.New("invalid grade")

var (
	symbols = [...]string{
		F: "F", DMinus: "D-", D: "D", DPlus: "D+",
		CMinus: "C-", C: "C", CPlus: "C+",
		BMinus: "B-", B: "B", BPlus: "B+",
		AMinus: "A-", A: "A", APlus: "A+",
	}

	points = [...]float64{
		F: 0.0, DMinus: 0.7, D: 1.0, DPlus: 1.3,
		CMinus: 1.7, C: 2.0, CPlus: 2.3,
		BMinus: 2.7, B: 3.0, BPlus: 3.3,
		AMinus: 3.7, A: 4.0, APlus: 4.3,
	}

	// lower bounds scanned from best to worst; anything below the last one is F.
	thresholds = [...]struct {
		min   float64
		grade Grade
	}{
		{4.15, APlus},
		{3.85, A},
		{3.5, AMinus},
		{3.15, BPlus},
		{2.85, B},
		{2.5, BMinus},
		{2.15, CPlus},
		{1.85, C},
		{1.5, CMinus},
		{1.15, DPlus},
		{0.85, D},
		{0.5, DMinus},
	}

	bySymbol = make(map[string]Grade, len(symbols))
)

func init() {
	for g := F; g <= APlus; g++ {
		bySymbol[symbols[g]] = g
	}
}

// All returns every grade from best to worst.
func All() []Grade {
	all := make([]Grade, 0, APlus)
	for g := APlus; g >= F; g-- {
		all = append(all, g)
	}
	return all
}

// Parse returns the Grade for a symbol such as "A+" or "C".
func Parse(s string) (Grade, error) {
	if g, ok := bySymbol[s]; ok {
		return g, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
}

// MustParse is like Parse but panics on unknown symbols.
func MustParse(s string) Grade {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

// Valid reports whether g is one of the 13 grades.
func (g Grade) Valid() bool {
	return g >= F && g <= APlus
}

// String returns the grade symbol, e.g. "A+".
func (g Grade) String() string {
	if !g.Valid() {
		return fmt.Sprintf("Grade(%d)", uint8(g))
	}
	return symbols[g]
}

// Letter returns the letter band of the grade without its modifier ("A" for "A-").
func (g Grade) Letter() string {
	return g.String()[:1]
}

// Points returns the numeric score of the grade on the 0.0 - 4.3 scale.
// It panics if g is not a valid grade.
func (g Grade) Points() float64 {
	if !g.Valid() {
		panic(fmt.Sprintf("grade: Points called on %v", g))
	}
	return points[g]
}

// FromPoints returns the grade whose band contains p.
// Values below 0.5 (negatives included) are F; values of 4.15 and above are A+.
// A value sitting exactly on a band boundary belongs to the higher grade.
func FromPoints(p float64) Grade {
	for _, t := range thresholds {
		if p >= t.min {
			return t.grade
		}
	}
	return F
}

// Mean returns the arithmetic mean of the grades' points.
// ok is false when grades is empty.
func Mean(grades []Grade) (mean float64, ok bool) {
	if len(grades) == 0 {
		return 0, false
	}
	var sum float64
	for _, g := range grades {
		sum += g.Points()
	}
	return sum / float64(len(grades)), true
}

// Average returns the grade of the mean of grades.
// ok is false when grades is empty: there is nothing to rate yet.
func Average(grades []Grade) (avg Grade, ok bool) {
	mean, ok := Mean(grades)
	if !ok {
		return 0, false
	}
	return FromPoints(mean), true
}

// MarshalText encodes the grade as its symbol.
func (g Grade) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalid, uint8(g))
	}
	return []byte(symbols[g]), nil
}

// UnmarshalText decodes a grade symbol, failing with ErrInvalid.
func (g *Grade) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Scan implements sql.Scanner; grades are stored as their symbol.
func (g *Grade) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return g.UnmarshalText([]byte(v))
	case []byte:
		return g.UnmarshalText(v)
	default:
		return fmt.Errorf("grade: cannot scan %T", src)
	}
}

// Value implements driver.Valuer.
func (g Grade) Value() (driver.Value, error) {
	b, err := g.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
