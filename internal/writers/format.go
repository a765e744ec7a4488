// internal/writers/format.go
package writers

import (
	"math"
	"strconv"
	"strings"

	"argscreen/internal/predict"
)

// pyBool renders as True/False, the spelling downstream tables expect.
type pyBool bool

func (b pyBool) MarshalCSV() (string, error) {
	if b {
		return "True", nil
	}
	return "False", nil
}

// prob renders rounded to 4 decimals.
type prob float64

func (p prob) MarshalCSV() (string, error) { return FormatProb(float64(p)), nil }

// optProb is a prob that renders empty when NaN.
type optProb float64

func (p optProb) MarshalCSV() (string, error) {
	if math.IsNaN(float64(p)) {
		return "", nil
	}
	return FormatProb(float64(p)), nil
}

func classCells(c *predict.Classification) (string, optProb) {
	if c == nil {
		return "", optProb(math.NaN())
	}
	return c.Name, optProb(c.Prob)
}

// FormatProb rounds to 4 decimals and always keeps a fractional part
// (1 → "1.0").
func FormatProb(p float64) string {
	s := strconv.FormatFloat(predict.Round4(p), 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
