// Package status simulates arbitrary HTTP status responses, including a
// weighted random pick from a list of candidate codes.
package status

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCode marks a code or weight that is not a number, or a code
	// that cannot be written as an HTTP status.
	ErrInvalidCode = errors.New("invalid status code")
	// ErrZeroWeights means no candidate can ever be drawn.
	ErrZeroWeights = errors.New("status weights sum to zero")
)

// Bounds accepted by net/http for a written status line.
const (
	// net/http cannot send a 1xx code as the final response.
	minCode = 200
	maxCode = 999
)

// Choice is one candidate of a weighted pick.
type Choice struct {
	Code   int
	Weight float64
}

// Parse reads either a single code ("418") or a comma separated list of
// code or code:weight tokens ("200:3,500"). Omitted weights default to 1.
func Parse(spec string) ([]Choice, error) {
	if !strings.Contains(spec, ",") {
		code, err := parseCode(spec)
		if err != nil {
			return nil, err
		}
		return []Choice{{Code: code, Weight: 1}}, nil
	}

	tokens := strings.Split(spec, ",")
	choices := make([]Choice, 0, len(tokens))
	for _, tok := range tokens {
		codeStr, weightStr, hasWeight := strings.Cut(tok, ":")
		code, err := parseCode(codeStr)
		if err != nil {
			return nil, err
		}
		weight := 1.0
		if hasWeight {
			weight, err = strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
			if err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
				return nil, fmt.Errorf("%w: weight %q", ErrInvalidCode, weightStr)
			}
		}
		choices = append(choices, Choice{Code: code, Weight: weight})
	}
	return choices, nil
}

func parseCode(s string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}
	if code < minCode || code > maxCode {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidCode, code)
	}
	return code, nil
}

// Choose draws one code with probability proportional to its weight. rnd
// must return a uniform value in [0, 1).
func Choose(choices []Choice, rnd func() float64) (int, error) {
	total := 0.0
	for _, c := range choices {
		total += c.Weight
	}
	if total <= 0 {
		return 0, ErrZeroWeights
	}

	upto := 0.0
	target := rnd() * total
	last := -1
	for i, c := range choices {
		if c.Weight == 0 {
			continue
		}
		upto += c.Weight
		last = i
		if target < upto {
			return c.Code, nil
		}
	}
	// Floating point rounding can leave target at the very top of the range.
	return choices[last].Code, nil
}

// Response is a fully resolved simulated response.
type Response struct {
	Code    int
	Headers map[string]string
	Body    []byte
}

// Write sends r. The rule's headers are applied before the status line.
func (r Response) Write(w http.ResponseWriter) {
	for k, v := range r.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(r.Code)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}

// Simulator resolves status specs. Rand defaults to math/rand/v2.
type Simulator struct {
	Rand func() float64
}

// Resolve parses spec, picks a code when several are given and returns the
// response for it.
func (s Simulator) Resolve(spec string) (Response, error) {
	choices, err := Parse(spec)
	if err != nil {
		return Response{}, err
	}
	rnd := s.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	code, err := Choose(choices, rnd)
	if err != nil {
		return Response{}, err
	}
	return For(code), nil
}

// For builds the response for a single code from the rule table.
func For(code int) Response {
	rule := Lookup(code)
	return Response{Code: code, Headers: rule.Headers, Body: rule.Body}
}
