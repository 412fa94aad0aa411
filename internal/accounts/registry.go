// Package accounts manages the pool of upstream logins the switchboard
// rotates across. Selection is round-robin; accounts that hit a rate limit
// cool down for a window, and accounts whose credentials are rejected leave
// the rotation until the file is reloaded.
package accounts

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jmswain/switchboard/internal/domain"
)

const defaultCooldown = 5 * time.Minute

// Account is one upstream login.
type Account struct {
	Name        string
	Credentials domain.Credentials
}

// Status reports one account's standing for the health endpoint.
type Status struct {
	Name        string    `json:"name"`
	Disabled    bool      `json:"disabled"`
	CoolingDown bool      `json:"cooling_down"`
	CoolUntil   time.Time `json:"cool_until,omitempty"`
}

type accountState struct {
	disabled  bool
	coolUntil time.Time
}

// Registry hands out accounts round-robin, skipping disabled and
// cooling-down entries. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	accounts []Account
	state    map[string]*accountState
	next     int
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the registry.
type Option func(*Registry)

// WithCooldown sets the rate-limit cooldown window.
func WithCooldown(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.cooldown = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry over a fixed account list.
func NewRegistry(accounts []Account, opts ...Option) *Registry {
	r := &Registry{
		accounts: accounts,
		state:    make(map[string]*accountState, len(accounts)),
		cooldown: defaultCooldown,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, acct := range accounts {
		r.state[acct.Name] = &accountState{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type accountRecord struct {
	Name        string `koanf:"name"`
	AccessToken string `koanf:"access_token"`
	MachineID   string `koanf:"machine_id"`
	GhostMode   bool   `koanf:"ghost_mode"`
	Disabled    bool   `koanf:"disabled"`
}

// Load reads the accounts file. The file carries an accounts list and an
// optional cooldown override:
//
//	cooldown: 5m
//	accounts:
//	  - name: personal
//	    access_token: "..."
//	    machine_id: "..."
//	    ghost_mode: true
func Load(path string, opts ...Option) (*Registry, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load accounts file: %w", err)
	}

	var raw struct {
		Cooldown string          `koanf:"cooldown"` // duration string like "5m"
		Accounts []accountRecord `koanf:"accounts"`
	}
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	if len(raw.Accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s lists no accounts", path)
	}

	accounts := make([]Account, 0, len(raw.Accounts))
	seen := make(map[string]bool)
	var disabled []string
	for i, rec := range raw.Accounts {
		if rec.AccessToken == "" {
			return nil, fmt.Errorf("account %d: access_token is required", i)
		}
		if rec.MachineID == "" {
			return nil, fmt.Errorf("account %d: machine_id is required", i)
		}
		name := rec.Name
		if name == "" {
			name = fmt.Sprintf("account-%d", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate account name %q", name)
		}
		seen[name] = true

		accounts = append(accounts, Account{
			Name: name,
			Credentials: domain.Credentials{
				AccessToken: rec.AccessToken,
				MachineID:   rec.MachineID,
				GhostMode:   rec.GhostMode,
			},
		})
		if rec.Disabled {
			disabled = append(disabled, name)
		}
	}

	if raw.Cooldown != "" {
		d, err := time.ParseDuration(raw.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("invalid cooldown %q: %w", raw.Cooldown, err)
		}
		opts = append([]Option{WithCooldown(d)}, opts...)
	}
	r := NewRegistry(accounts, opts...)
	for _, name := range disabled {
		r.state[name].disabled = true
	}
	return r, nil
}

// Pick returns the next available account and advances the rotation cursor.
// Every account disabled or cooling down yields ErrNoAccounts.
func (r *Registry) Pick() (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.accounts)
	now := r.now()
	for offset := 0; offset < n; offset++ {
		i := (r.next + offset) % n
		acct := r.accounts[i]
		st := r.state[acct.Name]
		if st.disabled || now.Before(st.coolUntil) {
			continue
		}
		r.next = (i + 1) % n
		return acct, nil
	}
	return Account{}, domain.ErrNoAccounts("every account is disabled or cooling down")
}

// MarkRateLimited puts the account on cooldown.
func (r *Registry) MarkRateLimited(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state[name]
	if !ok {
		return
	}
	st.coolUntil = r.now().Add(r.cooldown)
	r.logger.Warn("account rate limited, cooling down",
		slog.String("account", name),
		slog.Duration("cooldown", r.cooldown))
}

// MarkInvalid removes the account from rotation; its credentials were
// rejected upstream and retrying will not help.
func (r *Registry) MarkInvalid(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state[name]
	if !ok {
		return
	}
	st.disabled = true
	r.logger.Warn("account credentials rejected, removed from rotation",
		slog.String("account", name))
}

// Len reports the configured account count.
func (r *Registry) Len() int {
	return len(r.accounts)
}

// Available reports how many accounts are currently in rotation.
func (r *Registry) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	count := 0
	for _, acct := range r.accounts {
		st := r.state[acct.Name]
		if !st.disabled && !now.Before(st.coolUntil) {
			count++
		}
	}
	return count
}

// Statuses reports every account's standing in configuration order.
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	out := make([]Status, 0, len(r.accounts))
	for _, acct := range r.accounts {
		st := r.state[acct.Name]
		status := Status{Name: acct.Name, Disabled: st.disabled}
		if now.Before(st.coolUntil) {
			status.CoolingDown = true
			status.CoolUntil = st.coolUntil
		}
		out = append(out, status)
	}
	return out
}
