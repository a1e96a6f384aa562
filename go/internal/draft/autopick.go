package draft

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// Selector chooses the team drafted on a participant's behalf.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a selector drawing its random fallback from rng.
// A nil rng is replaced with a time-seeded source.
func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{rng: rng}
}

// Select returns the highest ranked team still undrafted, or a uniformly random
// undrafted team when no ranked team is available.
func (s *Selector) Select(ranked []uuid.UUID, undrafted []models.Team) (models.Team, events.PickSource, error) {
	if len(undrafted) == 0 {
		return models.Team{}, 0, ErrEmptyPool
	}

	if len(ranked) > 0 {
		pool := make(map[uuid.UUID]models.Team, len(undrafted))
		for _, team := range undrafted {
			pool[team.ID] = team
		}
		for _, id := range ranked {
			if team, ok := pool[id]; ok {
				return team, events.SourcePreferences, nil
			}
		}
	}

	s.mu.Lock()
	i := s.rng.Intn(len(undrafted))
	s.mu.Unlock()

	return undrafted[i], events.SourceRandom, nil
}
