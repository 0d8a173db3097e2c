package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/cache"
	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/mailer"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/testutil"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []*mailer.Message
	err  error
}

func (m *recordingMailer) Name() string { return "recording" }

func (m *recordingMailer) Send(ctx context.Context, msg *mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *recordingMailer) messages() []*mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mailer.Message(nil), m.sent...)
}

func (m *recordingMailer) bySubjectPrefix(prefix string) []*mailer.Message {
	var out []*mailer.Message
	for _, msg := range m.messages() {
		if len(msg.Subject) >= len(prefix) && msg.Subject[:len(prefix)] == prefix {
			out = append(out, msg)
		}
	}
	return out
}

type staticLocator string

func (l staticLocator) LookupCountry(ip string) string { return string(l) }

type testEnv struct {
	db     *gorm.DB
	cfg    *config.Config
	cache  *cache.MemoryCache
	mailer *recordingMailer
	svc    *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testutil.Config(t)
	db := testutil.NewTestDBWithConfig(t, cfg)

	c := cache.NewMemoryCache(cfg.Cache.NominationTTL, 0)
	t.Cleanup(func() { _ = c.Close() })

	m := &recordingMailer{}
	svc, err := New(db, cfg, c, m, staticLocator("UG"))
	require.NoError(t, err)

	return &testEnv{db: db, cfg: cfg, cache: c, mailer: m, svc: svc}
}

// drain runs the outbox until nothing is due. Tasks enqueued by handlers are picked up too.
func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 10; i++ {
		n, err := e.svc.Outbox.ProcessDue(context.Background())
		require.NoError(t, err)
		if n == 0 {
			return
		}
	}
	t.Fatal("outbox did not drain")
}

func (e *testEnv) tasks(t *testing.T, kind models.TaskKind) []models.OutboxTask {
	t.Helper()
	var tasks []models.OutboxTask
	require.NoError(t, e.db.Where("kind = ?", kind).Order("created_at ASC").Find(&tasks).Error)
	return tasks
}
