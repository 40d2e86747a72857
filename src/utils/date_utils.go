package utils

import (
	"fmt"
	"strings"
	"time"
)

// SubjectDateFormat is the date format statement e-mail subjects end with,
// e.g. "Activity Statement for 02/28/2025".
const SubjectDateFormat = "01/02/2006"

// ParseSubjectDate extracts the statement date from an e-mail subject line.
// The date is the last whitespace-separated token of the subject.
func ParseSubjectDate(subject string) (time.Time, error) {
	fields := strings.Fields(strings.TrimSpace(subject))
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("empty subject line")
	}
	tail := fields[len(fields)-1]
	t, err := time.Parse(SubjectDateFormat, tail)
	if err != nil {
		return time.Time{}, fmt.Errorf("subject does not end with a %s date: %q", SubjectDateFormat, tail)
	}
	return t, nil
}
