package cache

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/registrar/core"
)

// Sweeper periodically drops expired entries. Expiry stays lazy; sweeping only reclaims memory.
type Sweeper struct {
	reg    *Registry
	cron   *cron.Cron
	logger core.Logger
}

func NewSweeper(reg *Registry, schedule string, logger core.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = core.NopLogger{}
	}
	s := &Sweeper{
		reg:    reg,
		cron:   cron.New(),
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, errors.Wrapf(err, "cache: invalid sweep schedule %q", schedule)
	}
	return s, nil
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	if n := s.reg.Sweep(); n > 0 {
		s.logger.Debug(fmt.Sprintf("cache: swept %d expired entries", n))
	}
}
