package testutil

import "testing"

// Scenario runs Given/When/Then steps as ordered subtests. Steps build on
// shared state, so once one fails the rest are skipped instead of failing
// with confusing follow-on errors.
type Scenario struct {
	t      *testing.T
	failed string
}

// NewScenario starts a scenario bound to t.
func NewScenario(t *testing.T) *Scenario {
	return &Scenario{t: t}
}

func (s *Scenario) Given(desc string, fn func(t *testing.T)) *Scenario {
	return s.step("Given "+desc, fn)
}

func (s *Scenario) When(desc string, fn func(t *testing.T)) *Scenario {
	return s.step("When "+desc, fn)
}

func (s *Scenario) Then(desc string, fn func(t *testing.T)) *Scenario {
	return s.step("Then "+desc, fn)
}

func (s *Scenario) And(desc string, fn func(t *testing.T)) *Scenario {
	return s.step("And "+desc, fn)
}

func (s *Scenario) step(name string, fn func(t *testing.T)) *Scenario {
	s.t.Helper()
	ok := s.t.Run(name, func(t *testing.T) {
		if s.failed != "" {
			t.Skipf("skipped: %q failed", s.failed)
		}
		fn(t)
	})
	if !ok && s.failed == "" {
		s.failed = name
	}
	return s
}
