package services

import (
	"context"
	"sync"
	"time"

	"github.com/Lllllllleong/qrawareness/internal/models"
	"github.com/Lllllllleong/qrawareness/internal/sessions"
	"go.uber.org/zap"
)

const humanUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile Safari/604.1"

type fakeRecordStore struct {
	mu        sync.Mutex
	initCalls int
	initErr   error
	initDelay time.Duration
	upsertErr error
	slow      bool
	upserts   []models.Record
}

func (f *fakeRecordStore) EnsureInitialized(ctx context.Context) error {
	if f.initDelay > 0 {
		time.Sleep(f.initDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakeRecordStore) Upsert(ctx context.Context, rec models.Record) error {
	f.mu.Lock()
	slow := f.slow
	f.mu.Unlock()
	if slow {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeRecordStore) setInitErr(err error) {
	f.mu.Lock()
	f.initErr = err
	f.mu.Unlock()
}

func (f *fakeRecordStore) setSlow(slow bool) {
	f.mu.Lock()
	f.slow = slow
	f.mu.Unlock()
}

// writesFor returns the records written for one session, oldest first.
func (f *fakeRecordStore) writesFor(id string) []models.Record {
	var out []models.Record
	for _, rec := range f.written() {
		if rec.SessionID == id {
			out = append(out, rec)
		}
	}
	return out
}

func (f *fakeRecordStore) written() []models.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Record(nil), f.upserts...)
}

func (f *fakeRecordStore) inits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls
}

type fakeArchive struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (a *fakeArchive) Save(_ context.Context, sessionID string, payload []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saved == nil {
		a.saved = map[string][]byte{}
	}
	a.saved[sessionID] = payload
	return "gs://test/exports/" + sessionID + ".json", nil
}

// newFlow wires a controller over remote. A nil remote runs local-only.
func newFlow(remote RecordStore, idle time.Duration, archive Archiver) *FlowService {
	return newFlowWithTimeout(remote, idle, time.Second, archive)
}

func newFlowWithTimeout(remote RecordStore, idle, writeTimeout time.Duration, archive Archiver) *FlowService {
	store := sessions.NewStore(idle, nil)
	persister := NewPersister(remote, writeTimeout, zap.NewNop())
	return NewFlowService(store, persister, archive, zap.NewNop())
}
