// Package session holds the identity snapshot (account + network) a client
// works under. A Session is passed explicitly to every write operation.
package session

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"shortener-core/pkg/errno"
)

// Policy decides whether identity is re-read from the gateway before each attempt.
type Policy string

const (
	// PolicySnapshot 启动时读取一次, 会话期间不再刷新
	PolicySnapshot Policy = "snapshot"
	// PolicyRecheck 每次登记前重新读取账户和网络
	PolicyRecheck Policy = "recheck"
)

// IdentitySource is the part of the gateway that reports who and where we are.
type IdentitySource interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	NetworkID(ctx context.Context) (string, error)
}

type Session struct {
	mu        sync.RWMutex
	account   *common.Address
	networkID string
	expected  string
	policy    Policy
}

// New builds a session from known values. account may be nil (read-only).
func New(account *common.Address, networkID, expectedNetworkID string, policy Policy) *Session {
	if policy == "" {
		policy = PolicySnapshot
	}
	return &Session{
		account:   account,
		networkID: networkID,
		expected:  expectedNetworkID,
		policy:    policy,
	}
}

// Open reads the first account and the network id from src.
func Open(ctx context.Context, src IdentitySource, expectedNetworkID string, policy Policy) (*Session, error) {
	s := New(nil, "", expectedNetworkID, policy)
	if err := s.load(ctx, src); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh re-reads identity under PolicyRecheck; it is a no-op under PolicySnapshot.
func (s *Session) Refresh(ctx context.Context, src IdentitySource) error {
	if s.policy != PolicyRecheck {
		return nil
	}
	return s.load(ctx, src)
}

func (s *Session) load(ctx context.Context, src IdentitySource) error {
	accounts, err := src.Accounts(ctx)
	if err != nil {
		return errno.Wrap(errno.ErrGatewayUnavailable, err)
	}
	netID, err := src.NetworkID(ctx)
	if err != nil {
		return errno.Wrap(errno.ErrGatewayUnavailable, err)
	}

	var account *common.Address
	if len(accounts) > 0 {
		a := accounts[0]
		account = &a
	}

	s.mu.Lock()
	s.account = account
	s.networkID = netID
	s.mu.Unlock()
	return nil
}

// Account returns a copy of the signing account, or nil when read-only.
func (s *Session) Account() *common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return nil
	}
	a := *s.account
	return &a
}

func (s *Session) NetworkID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.networkID
}

func (s *Session) ExpectedNetworkID() string {
	return s.expected
}

func (s *Session) Policy() Policy {
	return s.policy
}

// Writable reports whether writes may be attempted.
func (s *Session) Writable() bool {
	return s.CheckWritable() == nil
}

// CheckWritable returns ErrNoAccount or ErrWrongNetwork, account first.
// A nil session has no account.
func (s *Session) CheckWritable() error {
	if s == nil {
		return errno.ErrNoAccount
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return errno.ErrNoAccount
	}
	if s.networkID != s.expected {
		return errno.Wrapf(errno.ErrWrongNetwork, "connected to %s, want %s", s.networkID, s.expected)
	}
	return nil
}
