package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type GuardTestSuite struct {
	suite.Suite
	guard *Guard
	now   time.Time
	seq   int
}

func (s *GuardTestSuite) SetupTest() {
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.seq = 0
	s.guard = NewGuard(GuardConfig{Lockout: 15 * time.Minute, CleanupInterval: time.Hour})
	s.guard.now = func() time.Time { return s.now }
	s.guard.challenge = func() (string, error) {
		s.seq++
		return fmt.Sprintf("CAP%03d", s.seq), nil
	}
}

func (s *GuardTestSuite) TearDownTest() {
	s.guard.Stop()
}

func (s *GuardTestSuite) failTimes(key string, n int) Status {
	var st Status
	for i := 0; i < n; i++ {
		var err error
		st, err = s.guard.Fail(key)
		s.Require().NoError(err)
	}
	return st
}

func (s *GuardTestSuite) TestUnknownClientAdmitted() {
	st, err := s.guard.Admit("1.2.3.4", "")
	s.NoError(err)
	s.False(st.CaptchaRequired())
	s.Equal(0, s.guard.Tracked())
}

func (s *GuardTestSuite) TestCaptchaAfterThreeFailures() {
	st := s.failTimes("ip", 2)
	s.False(st.CaptchaRequired())

	st = s.failTimes("ip", 1)
	s.True(st.CaptchaRequired())
	s.Equal("CAP001", st.Captcha)
}

func (s *GuardTestSuite) TestMissingAnswerDoesNotCount() {
	s.failTimes("ip", 3)
	st, err := s.guard.Admit("ip", "")
	s.ErrorIs(err, ErrCaptchaRequired)
	s.Equal(3, st.Failures)
	s.Equal("CAP001", st.Captcha)
}

func (s *GuardTestSuite) TestWrongAnswerCountsAndRegenerates() {
	s.failTimes("ip", 3)
	st, err := s.guard.Admit("ip", "NOPE")
	s.ErrorIs(err, ErrCaptchaMismatch)
	s.Equal(4, st.Failures)
	s.Equal("CAP002", st.Captcha)
}

func (s *GuardTestSuite) TestAnswerIsCaseSensitive() {
	s.failTimes("ip", 3)
	_, err := s.guard.Admit("ip", "cap001")
	s.ErrorIs(err, ErrCaptchaMismatch)
}

func (s *GuardTestSuite) TestCorrectAnswerAdmits() {
	s.failTimes("ip", 3)
	st, err := s.guard.Admit("ip", "CAP001")
	s.NoError(err)
	s.Equal(3, st.Failures)
}

func (s *GuardTestSuite) TestLockAfterFiveFailures() {
	st := s.failTimes("ip", 5)
	s.True(st.Locked)
	s.Equal(15*time.Minute, st.RetryAfter)

	_, err := s.guard.Admit("ip", "CAP001")
	s.ErrorIs(err, ErrLocked)
}

func (s *GuardTestSuite) TestWrongAnswerCanLock() {
	s.failTimes("ip", 4)
	st, err := s.guard.Admit("ip", "NOPE")
	s.ErrorIs(err, ErrLocked)
	s.True(st.Locked)
}

func (s *GuardTestSuite) TestLockExpires() {
	s.failTimes("ip", 5)
	s.now = s.now.Add(15 * time.Minute)
	st, err := s.guard.Admit("ip", "")
	s.NoError(err)
	s.Equal(0, st.Failures)
	s.Equal(0, s.guard.Tracked())
}

func (s *GuardTestSuite) TestSucceedClears() {
	s.failTimes("ip", 4)
	s.guard.Succeed("ip")
	s.Equal(Status{}, s.guard.Status("ip"))
}

func (s *GuardTestSuite) TestClientsAreIndependent() {
	s.failTimes("a", 5)
	_, err := s.guard.Admit("b", "")
	s.NoError(err)
}

func (s *GuardTestSuite) TestRefresh() {
	st, err := s.guard.Refresh("ip")
	s.NoError(err)
	s.False(st.CaptchaRequired())

	s.failTimes("ip", 3)
	st, err = s.guard.Refresh("ip")
	s.NoError(err)
	s.Equal("CAP002", st.Captcha)
}

func (s *GuardTestSuite) TestCleanupDropsStaleEntries() {
	s.failTimes("old", 1)
	s.now = s.now.Add(20 * time.Minute)
	s.failTimes("new", 1)
	s.guard.cleanupStaleEntries()
	s.Equal(1, s.guard.Tracked())
	s.Equal(1, s.guard.Status("new").Failures)
}

func (s *GuardTestSuite) TestStopIsIdempotent() {
	s.guard.Stop()
	s.guard.Stop()
}

func TestGuardTestSuite(t *testing.T) {
	suite.Run(t, new(GuardTestSuite))
}
