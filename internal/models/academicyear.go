package models

import (
	"fmt"
	"regexp"
	"strconv"
)

var academicYearPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// AcademicYear is a school year such as "2024-2025". It is parsed and
// validated once at the API boundary; persistence keys on the start year.
type AcademicYear struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ParseAcademicYear validates a "YYYY-YYYY" display string. The end year
// must be exactly one year after the start.
func ParseAcademicYear(raw string) (AcademicYear, error) {
	match := academicYearPattern.FindStringSubmatch(raw)
	if match == nil {
		return AcademicYear{}, fmt.Errorf("invalid academic year %q, expected YYYY-YYYY", raw)
	}
	start, _ := strconv.Atoi(match[1])
	end, _ := strconv.Atoi(match[2])
	if end != start+1 {
		return AcademicYear{}, fmt.Errorf("academic year %q must span consecutive years", raw)
	}
	return AcademicYear{Start: start, End: end}, nil
}

// AcademicYearFromStart builds the year beginning at start.
func AcademicYearFromStart(start int) AcademicYear {
	return AcademicYear{Start: start, End: start + 1}
}

// String renders the canonical display form.
func (y AcademicYear) String() string {
	return fmt.Sprintf("%d-%d", y.Start, y.End)
}
