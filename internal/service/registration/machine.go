package registration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shortener-core/internal/ledger"
	"shortener-core/internal/model"
	"shortener-core/internal/poll"
	"shortener-core/internal/service/transaction"
	"shortener-core/internal/session"
	"shortener-core/pkg/errno"
	"shortener-core/pkg/logger"
	"shortener-core/pkg/monitor"
	"shortener-core/pkg/urlbody"
	"shortener-core/pkg/utils/lock"
)

// Controller is the slice of transaction.Controller the machine drives.
type Controller interface {
	ResolveKey(ctx context.Context, sess *session.Session, urlBody string) (string, error)
	EstimateCost(ctx context.Context, sess *session.Session, urlBody string) (uint64, error)
	Submit(ctx context.Context, sess *session.Session, urlBody string, cost uint64) (*model.PendingRequest, error)
	AwaitConfirmation(ctx context.Context, txHash common.Hash, cfg poll.Config) (*ledger.Receipt, error)
}

var _ Controller = (*transaction.Controller)(nil)

type Config struct {
	Confirm poll.Config // 回执轮询
	Resolve poll.Config // 确认后等待 key 可读; 用尽返回 ErrReadConsistencyTimeout
	LockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Confirm: transaction.DefaultConfirmPolicy(),
		Resolve: poll.Config{
			Interval:    200 * time.Millisecond,
			Multiplier:  1,
			MaxAttempts: 50,
			WaitFirst:   true,
		},
		LockTTL: 15 * time.Minute,
	}
}

// Machine 注册流程状态机, 每个实例同一时间只允许一次尝试
type Machine struct {
	ctrl   Controller
	sess   *session.Session
	src    session.IdentitySource
	locker lock.DistributedLock
	cfg    Config

	mu        sync.Mutex
	snap      Snapshot
	busy      bool
	observers []func(Snapshot)
}

type Option func(*Machine)

func WithConfig(cfg Config) Option {
	return func(m *Machine) {
		m.cfg = cfg
	}
}

// WithLock serializes attempts for the same url body across processes.
func WithLock(l lock.DistributedLock) Option {
	return func(m *Machine) {
		m.locker = l
	}
}

// WithIdentitySource enables session refresh under session.PolicyRecheck.
func WithIdentitySource(src session.IdentitySource) Option {
	return func(m *Machine) {
		m.src = src
	}
}

func NewMachine(ctrl Controller, sess *session.Session, opts ...Option) *Machine {
	m := &Machine{
		ctrl: ctrl,
		sess: sess,
		cfg:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers fn to receive every state transition in order.
func (m *Machine) Subscribe(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.State
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// CanSubmit reports whether a new attempt would be accepted.
func (m *Machine) CanSubmit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.busy
}

func (m *Machine) Session() *session.Session {
	return m.sess
}

// Register 执行一次完整的注册尝试, 返回该尝试的终态投影
// (Resolved / Failed, 重复登记时为带 Key 的 Idle); 返回后状态机总是回到 Idle 或停在 Resolved
func (m *Machine) Register(ctx context.Context, rawURL string) (Snapshot, error) {
	if !m.acquire() {
		return Snapshot{}, errno.ErrBusy
	}
	defer m.release()

	body, unlock, err := m.prepare(ctx, rawURL)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	return m.run(ctx, body)
}

// Start 同步完成前置检查, 然后在后台执行注册; 进度通过 Subscribe / Snapshot 观察
func (m *Machine) Start(ctx context.Context, rawURL string) error {
	if !m.acquire() {
		return errno.ErrBusy
	}

	body, unlock, err := m.prepare(ctx, rawURL)
	if err != nil {
		m.release()
		return err
	}

	go func() {
		defer m.release()
		defer unlock()
		_, _ = m.run(ctx, body)
	}()
	return nil
}

// prepare 前置检查, 不触发状态迁移, 也不调用 gateway 的读写接口
func (m *Machine) prepare(ctx context.Context, rawURL string) (string, func(), error) {
	body := urlbody.Normalize(rawURL)
	if !urlbody.Valid(body) {
		return "", nil, errno.Wrapf(errno.ErrInvalidURL, "%q", rawURL)
	}
	if m.src != nil {
		if err := m.sess.Refresh(ctx, m.src); err != nil {
			return "", nil, err
		}
	}
	if err := m.sess.CheckWritable(); err != nil {
		return "", nil, err
	}

	if m.locker == nil {
		return body, func() {}, nil
	}
	lockKey := "register:" + body
	ok, err := m.locker.Acquire(ctx, lockKey, m.cfg.LockTTL)
	if err != nil {
		return "", nil, errno.Wrap(errno.ErrGatewayUnavailable, err)
	}
	if !ok {
		return "", nil, errno.Wrapf(errno.ErrBusy, "url %s is being registered elsewhere", body)
	}
	unlock := func() {
		if err := m.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			logger.Warn("释放注册锁失败", zap.String("url", body), zap.Error(err))
		}
	}
	return body, unlock, nil
}

func (m *Machine) run(ctx context.Context, body string) (Snapshot, error) {
	cur := Snapshot{URLBody: body, AttemptID: uuid.NewString()}
	log := logger.Named("registration").With(zap.String("attempt", cur.AttemptID), zap.String("url", body))

	// 1. 重复检查, 每次尝试都必须执行
	cur.State = Checking
	m.set(cur)
	key, err := m.ctrl.ResolveKey(ctx, m.sess, body)
	if err != nil {
		return m.fail(cur, err)
	}
	if key != "" {
		log.Info("url 已登记", zap.String("key", key))
		monitor.ObserveRegistration("duplicate")
		cur.State = Idle
		cur.Key = key
		cur.Err = errno.Wrapf(errno.ErrAlreadyRegistered, "key %s", key)
		m.set(cur)
		return cur, cur.Err
	}

	// 2. 估算并发送
	cur.State = Submitting
	m.set(cur)
	cost, err := m.ctrl.EstimateCost(ctx, m.sess, body)
	if err != nil {
		return m.fail(cur, err)
	}
	req, err := m.ctrl.Submit(ctx, m.sess, body, cost)
	if err != nil {
		return m.fail(cur, err)
	}

	// 3. 等待回执
	cur.State = AwaitingConfirmation
	cur.Waiting = true
	cur.TxHash = req.TxHash
	m.set(cur)
	if _, err := m.ctrl.AwaitConfirmation(ctx, common.HexToHash(req.TxHash), m.cfg.Confirm); err != nil {
		return m.fail(cur, err)
	}

	// 4. 确认后 key 不一定立即可读
	key, err = m.awaitKey(ctx, body)
	if err != nil {
		return m.fail(cur, err)
	}

	cur.State = Resolved
	cur.Waiting = false
	cur.Key = key
	m.set(cur)
	monitor.ObserveRegistration("resolved")
	log.Info("注册完成", zap.String("key", key), zap.String("tx", cur.TxHash))
	return cur, nil
}

func (m *Machine) awaitKey(ctx context.Context, body string) (string, error) {
	key, err := poll.Until(ctx, m.cfg.Resolve, func(ctx context.Context, attempt int) (string, bool, error) {
		key, err := m.ctrl.ResolveKey(ctx, m.sess, body)
		return key, key != "", err
	})
	if errors.Is(err, poll.ErrExhausted) || errors.Is(err, poll.ErrTimeout) {
		return "", errno.Wrap(errno.ErrReadConsistencyTimeout, err)
	}
	return key, err
}

// fail 迁移到 Failed, 随后回到 Idle; 错误保留在两个快照中
func (m *Machine) fail(cur Snapshot, err error) (Snapshot, error) {
	logger.Warn("注册失败",
		zap.String("attempt", cur.AttemptID),
		zap.String("state", cur.State.String()),
		zap.Error(err),
	)
	monitor.ObserveRegistration("failed")

	cur.State = Failed
	cur.Waiting = false
	cur.Key = ""
	cur.Err = err
	m.set(cur)

	idle := cur
	idle.State = Idle
	m.set(idle)
	return cur, err
}

func (m *Machine) set(s Snapshot) {
	m.mu.Lock()
	m.snap = s
	observers := make([]func(Snapshot), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

func (m *Machine) acquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return false
	}
	m.busy = true
	return true
}

func (m *Machine) release() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}
