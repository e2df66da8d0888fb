package textnorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// datePattern matches day/month with an optional year. Only the first match in
// a phrase is expanded.
var datePattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{0,4}))?`)

// DateParseError reports a date-shaped substring that could not be spoken.
// The phrase keeps the date digits unexpanded when this happens.
type DateParseError struct {
	Text   string
	Reason string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("date %q: %s", e.Text, e.Reason)
}

var months = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var ordinals = map[int]string{
	1: "first", 2: "second", 3: "third", 4: "fourth", 5: "fifth",
	6: "sixth", 7: "seventh", 8: "eighth", 9: "ninth", 10: "tenth",
	11: "eleventh", 12: "twelfth", 13: "thirteenth", 14: "fourteenth",
	15: "fifteenth", 16: "sixteenth", 17: "seventeenth", 18: "eighteenth",
	19: "nineteenth", 20: "twentieth", 30: "thirtieth",
}

var cardinals = map[int]string{
	0: "zero", 1: "one", 2: "two", 3: "three", 4: "four", 5: "five",
	6: "six", 7: "seven", 8: "eight", 9: "nine", 10: "ten",
	11: "eleven", 12: "twelve", 13: "thirteen", 14: "fourteen",
	15: "fifteen", 16: "sixteen", 17: "seventeen", 18: "eighteen",
	19: "nineteen", 20: "twenty", 30: "thirty", 40: "forty", 50: "fifty",
	60: "sixty", 70: "seventy", 80: "eighty", 90: "ninety",
}

// ExpandDate replaces the first date in phrase with its spoken form. When the
// date is malformed the phrase is returned untouched along with the error.
func ExpandDate(phrase string) (string, error) {
	loc := datePattern.FindStringSubmatchIndex(phrase)
	if loc == nil {
		return phrase, nil
	}
	match := phrase[loc[0]:loc[1]]
	day, _ := strconv.Atoi(phrase[loc[2]:loc[3]])
	month, _ := strconv.Atoi(phrase[loc[4]:loc[5]])
	year := ""
	if loc[6] >= 0 {
		year = phrase[loc[6]:loc[7]]
	}

	spoken, err := speakDate(day, month, year)
	if err != nil {
		return phrase, &DateParseError{Text: match, Reason: err.Error()}
	}
	return phrase[:loc[0]] + spoken + phrase[loc[1]:], nil
}

func speakDate(day, month int, year string) (string, error) {
	if day < 1 || day > 31 {
		return "", fmt.Errorf("day %d out of range 1-31", day)
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month %d out of range 1-12", month)
	}
	parts := []string{months[month-1], dayWords(day)}
	if year != "" {
		words, err := yearWords(year)
		if err != nil {
			return "", err
		}
		parts = append(parts, words)
	}
	return strings.Join(parts, " "), nil
}

func dayWords(day int) string {
	if w, ok := ordinals[day]; ok {
		return w
	}
	return cardinals[day/10*10] + " " + ordinals[day%10]
}

// yearWords speaks a year as 19xx. Two-digit years always land in the 1900s.
func yearWords(year string) (string, error) {
	n, err := strconv.Atoi(year)
	if err != nil {
		return "", fmt.Errorf("year %q is not a number", year)
	}
	switch len(year) {
	case 1, 2:
	case 4:
		if n < 1900 || n > 1999 {
			return "", fmt.Errorf("year %d outside 1900-1999", n)
		}
		n %= 100
	default:
		return "", fmt.Errorf("year %q must have 2 or 4 digits", year)
	}

	switch {
	case n == 0:
		return "nineteen hundred", nil
	case n < 10:
		return "nineteen zero " + cardinals[n], nil
	case n <= 20 || n%10 == 0:
		return "nineteen " + cardinals[n], nil
	default:
		return "nineteen " + cardinals[n/10*10] + " " + cardinals[n%10], nil
	}
}
