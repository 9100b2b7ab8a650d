package builder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ScheduleSuite struct {
	suite.Suite
}

func (s *ScheduleSuite) TestDefaults() {
	sc := NewSchedule(ScheduleConfig{})
	s.Equal(24*time.Hour, sc.NextDelay(0))
	s.Equal(5*time.Minute, sc.NextDelay(1))
	s.Equal(15*time.Minute, sc.NextDelay(2))
	s.Equal(30*time.Minute, sc.NextDelay(3))
	s.Equal(60*time.Minute, sc.NextDelay(4))
	s.Equal(60*time.Minute, sc.NextDelay(100))
}

func (s *ScheduleSuite) TestBackoffNeverExceedsInterval() {
	sc := NewSchedule(ScheduleConfig{Interval: 10 * time.Minute})
	s.Equal(10*time.Minute, sc.NextDelay(0))
	s.Equal(5*time.Minute, sc.NextDelay(1))
	s.Equal(10*time.Minute, sc.NextDelay(2))
	s.Equal(10*time.Minute, sc.NextDelay(7))
}

func TestScheduleSuite(t *testing.T) {
	suite.Run(t, new(ScheduleSuite))
}
