package session

import (
	"slices"
	"sync"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

const (
	AdminLoginPath   = "/admin-login"
	NurseryLoginPath = "/nursery-login"
)

type Area string

const (
	AreaAdmin  Area = "admin"
	AreaOwner  Area = "owner"
	AreaParent Area = "parent"
)

type GateState struct {
	IsAuthenticated bool
	Role            enums.Role
	IsLoading       bool
}

// Decision tells a protected area what to do. Replace redirects must not
// leave the protected page in history.
type Decision struct {
	Render   bool
	Loading  bool
	Redirect string
	Replace  bool
}

// Gate guards one protected area. It reports loading until Mount has read
// the session once.
type Gate struct {
	area    Area
	login   string
	allowed []enums.Role
	source  *store

	mu      sync.Mutex
	mounted bool
	state   GateState
	cancel  func()
}

func NewAdminGate(s *AdminStore) *Gate {
	return newGate(AreaAdmin, AdminLoginPath, s.store, enums.RoleAdmin)
}

func NewOwnerGate(s *UserStore) *Gate {
	return newGate(AreaOwner, NurseryLoginPath, s.store, enums.RoleNurseryOwner)
}

func NewParentGate(s *UserStore) *Gate {
	return newGate(AreaParent, NurseryLoginPath, s.store, enums.RoleParent, enums.RoleUser)
}

func newGate(area Area, login string, src *store, allowed ...enums.Role) *Gate {
	return &Gate{
		area:    area,
		login:   login,
		allowed: allowed,
		source:  src,
		state:   GateState{IsLoading: true},
	}
}

func (g *Gate) Area() Area {
	return g.area
}

// Mount settles the gate from the current session and keeps it in step with
// external changes until Unmount.
func (g *Gate) Mount() {
	g.mu.Lock()
	if g.mounted {
		g.mu.Unlock()
		return
	}
	g.mounted = true
	g.state = g.derive(g.source.Current())
	g.mu.Unlock()

	cancel := g.source.OnExternalChange(func(snap Snapshot) {
		g.mu.Lock()
		if g.mounted {
			g.state = g.derive(snap)
		}
		g.mu.Unlock()
	})

	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()
}

func (g *Gate) Unmount() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.mounted = false
	g.state = GateState{IsLoading: true}
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (g *Gate) derive(snap Snapshot) GateState {
	ok := snap.Authenticated && slices.Contains(g.allowed, snap.Role)
	state := GateState{IsAuthenticated: ok}
	if ok {
		state.Role = snap.Role
	}
	return state
}

func (g *Gate) Evaluate() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) Decide() Decision {
	state := g.Evaluate()
	switch {
	case state.IsLoading:
		return Decision{Loading: true}
	case !state.IsAuthenticated:
		return Decision{Redirect: g.login, Replace: true}
	default:
		return Decision{Render: true}
	}
}
