// Package credentials implements the just-in-time credential broker.
//
// Material is encrypted at rest in MongoDB keyed by session. Resolve returns
// a short-lived handle, never the material itself; the handle is valid for
// one gateway invocation and is discarded synchronously after use. No
// component outside the gateway's execution boundary ever sees cleartext.
package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deployd/internal/config"
	"github.com/fyrsmithlabs/deployd/internal/logging"
)

// ErrCredentialsMissing is returned by Resolve when no material is stored
// for the session. Non-fatal: deployment stages block, conversational
// stages proceed.
var ErrCredentialsMissing = errors.New("credentials missing")

// ErrHandleExpired is returned when a handle is used past its TTL or after
// it was discarded.
var ErrHandleExpired = errors.New("credential handle expired")

// Material is one set of cloud credentials. Fields use config.Secret so any
// accidental serialization redacts.
type Material struct {
	AccessKeyID     config.Secret `json:"access_key_id"`
	SecretAccessKey config.Secret `json:"secret_access_key"`
	SessionToken    config.Secret `json:"session_token,omitempty"`
}

func (m Material) valid() bool {
	return m.AccessKeyID.IsSet() && m.SecretAccessKey.IsSet()
}

// Status is the non-sensitive view of stored credentials.
type Status struct {
	State       string     `json:"status"`
	KeyLastFour string     `json:"access_key_last_four,omitempty"`
	LastUpdated *time.Time `json:"updated_at,omitempty"`
}

const (
	StatePresent = "present"
	StateMissing = "missing"
)

// Handle is a one-shot reference to resolved material. It expires after the
// broker's TTL and becomes unusable once discarded.
type Handle struct {
	mu        sync.Mutex
	material  *Material
	expiresAt time.Time
}

// Material returns the cleartext material if the handle is still live.
func (h *Handle) Material() (Material, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.material == nil || time.Now().After(h.expiresAt) {
		return Material{}, ErrHandleExpired
	}
	return *h.material, nil
}

// Discard drops the material. Idempotent. The gateway calls this as soon as
// the underlying action returns.
func (h *Handle) Discard() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.material = nil
}

// Store persists encrypted credential records.
type Store interface {
	// SaveActive writes a new active record for the session, deactivating
	// any prior record for the same session first.
	SaveActive(ctx context.Context, sessionID string, rec Record) error
	// FindActive returns the newest active record for the session or
	// ErrCredentialsMissing.
	FindActive(ctx context.Context, sessionID string) (Record, error)
}

// Record is the persisted shape: ciphertext plus non-sensitive metadata.
type Record struct {
	SessionID   string
	Ciphertext  []byte
	KeyLastFour string
	UpdatedAt   time.Time
}

// Broker resolves and stores credentials.
type Broker struct {
	store  Store
	box    *secretBox
	ttl    time.Duration
	logger *logging.Logger
}

// NewBroker creates a broker. The master key must be 32 bytes.
func NewBroker(store Store, logger *logging.Logger, cfg config.CredentialsConfig) (*Broker, error) {
	if store == nil {
		return nil, errors.New("credentials: store is required")
	}
	box, err := newSecretBox([]byte(cfg.MasterKey.Value()))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ttl := cfg.HandleTTL.Duration()
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Broker{
		store:  store,
		box:    box,
		ttl:    ttl,
		logger: logger.Named("credentials"),
	}, nil
}

// Resolve fetches and decrypts the session's active credentials, returning
// a handle valid for one invocation.
func (b *Broker) Resolve(ctx context.Context, sessionID string) (*Handle, error) {
	if sessionID == "" {
		return nil, errors.New("credentials: session id is required")
	}
	rec, err := b.store.FindActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	material, err := b.box.open(rec.Ciphertext)
	if err != nil {
		b.logger.Error(ctx, "failed to decrypt stored credentials",
			zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	if !material.valid() {
		return nil, errors.New("credentials: stored material is incomplete")
	}

	return &Handle{
		material:  &material,
		expiresAt: time.Now().Add(b.ttl),
	}, nil
}

// Store encrypts and persists material as the session's active record.
// Last-writer-wins per session: any prior record is deactivated.
func (b *Broker) Store(ctx context.Context, sessionID string, material Material) error {
	if sessionID == "" {
		return errors.New("credentials: session id is required")
	}
	if !material.valid() {
		return errors.New("credentials: access key id and secret access key are required")
	}

	ciphertext, err := b.box.seal(material)
	if err != nil {
		return err
	}

	key := material.AccessKeyID.Value()
	lastFour := key
	if len(key) > 4 {
		lastFour = key[len(key)-4:]
	}

	rec := Record{
		SessionID:   sessionID,
		Ciphertext:  ciphertext,
		KeyLastFour: lastFour,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := b.store.SaveActive(ctx, sessionID, rec); err != nil {
		return err
	}

	b.logger.Info(ctx, "credentials stored",
		zap.String("session_id", sessionID),
		zap.String("key_suffix", lastFour))
	return nil
}

// Status reports presence metadata without touching the secret material.
func (b *Broker) Status(ctx context.Context, sessionID string) (Status, error) {
	rec, err := b.store.FindActive(ctx, sessionID)
	if errors.Is(err, ErrCredentialsMissing) {
		return Status{State: StateMissing}, nil
	}
	if err != nil {
		return Status{}, err
	}
	updated := rec.UpdatedAt
	return Status{
		State:       StatePresent,
		KeyLastFour: rec.KeyLastFour,
		LastUpdated: &updated,
	}, nil
}
