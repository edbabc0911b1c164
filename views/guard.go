package views

import "github.com/jrsteele09/revalytiq-client/session"

// Route is a navigation target.
type Route string

const (
	RouteLogin          Route = "/"
	RouteSignup         Route = "/signup"
	RouteForgotPassword Route = "/forgot-password"
	RouteResetPassword  Route = "/reset-password"
	RouteDashboard      Route = "/dashboard"
	RouteProfile        Route = "/profile"
)

type DecisionKind int

const (
	// DecisionPending means the startup check has not settled: show nothing conclusive.
	DecisionPending DecisionKind = iota
	// DecisionRedirect sends the user to Decision.To.
	DecisionRedirect
	// DecisionAllow renders the view.
	DecisionAllow
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionPending:
		return "pending"
	case DecisionRedirect:
		return "redirect"
	case DecisionAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision is what a view does with the current session state.
type Decision struct {
	Kind DecisionKind
	To   Route
}

// Guard gates protected views. It never redirects before the startup check settles.
func Guard(state session.State) Decision {
	switch {
	case !state.Initialized:
		return Decision{Kind: DecisionPending}
	case !state.LoggedIn():
		return Decision{Kind: DecisionRedirect, To: RouteLogin}
	default:
		return Decision{Kind: DecisionAllow}
	}
}

// GuestGuard gates the login page: a known user is sent on to the dashboard.
func GuestGuard(state session.State) Decision {
	if state.LoggedIn() {
		return Decision{Kind: DecisionRedirect, To: RouteDashboard}
	}
	return Decision{Kind: DecisionAllow}
}
