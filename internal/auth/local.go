package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

// Local is a Provider backed by a UserStore. It holds a single session,
// matching one client per process.
type Local struct {
	users UserStore
	cost  int
	now   func() time.Time

	mu       sync.Mutex
	current  string
	watchers []watcher
	nextID   int
}

type watcher struct {
	id int
	fn func(string)
}

var _ Provider = (*Local)(nil)

type LocalOption func(*Local)

// WithBcryptCost overrides the hashing cost, e.g. bcrypt.MinCost in tests.
func WithBcryptCost(cost int) LocalOption {
	return func(l *Local) { l.cost = cost }
}

// WithInitialUser starts the provider with uid signed in.
func WithInitialUser(uid string) LocalOption {
	return func(l *Local) { l.current = uid }
}

func NewLocal(users UserStore, opts ...LocalOption) *Local {
	l := &Local{
		users: users,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) SignIn(ctx context.Context, email, password string) error {
	email, err := validateCredentials(email, password, false)
	if err != nil {
		return err
	}
	u, err := l.users.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return newError(CodeInvalidCredentials, "E-mail ou senha inválidos", nil)
	}
	if err != nil {
		return newError(CodeInternal, "Erro ao entrar", err)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return newError(CodeInvalidCredentials, "E-mail ou senha inválidos", nil)
	}
	l.setCurrent(u.ID)
	return nil
}

// SignUp creates the account and signs it in.
func (l *Local) SignUp(ctx context.Context, email, password string) error {
	email, err := validateCredentials(email, password, true)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return newError(CodeInternal, "Erro ao cadastrar", err)
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    l.now().UTC(),
	}
	if err := l.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			return newError(CodeEmailInUse, "E-mail já cadastrado", err)
		}
		return newError(CodeInternal, "Erro ao cadastrar", err)
	}
	l.setCurrent(u.ID)
	return nil
}

func (l *Local) SignOut(ctx context.Context) error {
	l.setCurrent("")
	return nil
}

func (l *Local) Current() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current, l.current != ""
}

func (l *Local) Watch(fn func(uid string)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.watchers = append(l.watchers, watcher{id: id, fn: fn})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		for i, w := range l.watchers {
			if w.id == id {
				l.watchers = append(l.watchers[:i:i], l.watchers[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
	}
}

// setCurrent notifies watchers outside the lock, only on an actual change.
func (l *Local) setCurrent(uid string) {
	l.mu.Lock()
	if l.current == uid {
		l.mu.Unlock()
		return
	}
	l.current = uid
	ws := make([]watcher, len(l.watchers))
	copy(ws, l.watchers)
	l.mu.Unlock()

	for _, w := range ws {
		w.fn(uid)
	}
}

func validateCredentials(email, password string, signUp bool) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", newError(CodeMissingFields, "Preencha todos os campos", nil)
	}
	if !strings.Contains(email, "@") {
		return "", newError(CodeInvalidEmail, "E-mail inválido", nil)
	}
	if signUp && len(password) < minPasswordLen {
		return "", newError(CodeWeakPassword, "A senha deve ter pelo menos 6 caracteres", nil)
	}
	return email, nil
}
