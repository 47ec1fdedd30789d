package devices

import (
	"context"
	"sync"

	"github.com/neomind-iot/neomind/pkg/models"
)

// MemoryCommandStore is an in-process CommandStore.
type MemoryCommandStore struct {
	mu       sync.Mutex
	byID     map[string]models.CommandRecord
	byDevice map[string][]string // deviceID -> ordered command record IDs, newest last
}

// NewMemoryCommandStore creates an empty MemoryCommandStore.
func NewMemoryCommandStore() *MemoryCommandStore {
	return &MemoryCommandStore{
		byID:     make(map[string]models.CommandRecord),
		byDevice: make(map[string][]string),
	}
}

func (s *MemoryCommandStore) SaveCommand(ctx context.Context, cmd models.CommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[cmd.ID] = cmd
	s.byDevice[cmd.DeviceID] = append(s.byDevice[cmd.DeviceID], cmd.ID)
	return nil
}

func (s *MemoryCommandStore) UpdateCommandStatus(ctx context.Context, id string, status models.CommandStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil
	}
	rec.Status = status
	rec.Error = errMsg
	s.byID[id] = rec
	return nil
}

// PendingCommand returns the most recently issued sent/pending command for
// (deviceID, command), used to correlate an inbound ack back to its record.
func (s *MemoryCommandStore) PendingCommand(ctx context.Context, deviceID, command string) (models.CommandRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byDevice[deviceID]
	for i := len(ids) - 1; i >= 0; i-- {
		rec := s.byID[ids[i]]
		if rec.Command != command {
			continue
		}
		if rec.Status == models.CommandStatusSent || rec.Status == models.CommandStatusPending {
			return rec, true, nil
		}
	}
	return models.CommandRecord{}, false, nil
}

var _ CommandStore = (*MemoryCommandStore)(nil)
