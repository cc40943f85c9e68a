package inmemdb

import (
	"sync"

	"github.com/trezcool/campus/core/fees"
)

// DB is a process-local store backing local development and handler tests.
type DB struct {
	fees *feesTables
}

type feesTables struct {
	mutex sync.RWMutex

	categories map[string]*fees.Category
	structures map[string]*fees.Structure
	accounts   map[string]*fees.Account // keyed by regNo
	payments   map[string]*fees.Payment
	runs       []fees.AgentRun // oldest first
	state      *fees.AgentState
}

func NewDB() *DB {
	return &DB{
		fees: &feesTables{
			categories: make(map[string]*fees.Category),
			structures: make(map[string]*fees.Structure),
			accounts:   make(map[string]*fees.Account),
			payments:   make(map[string]*fees.Payment),
		},
	}
}
