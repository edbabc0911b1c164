package views

import (
	"context"

	"github.com/jrsteele09/revalytiq-client/api"
	"github.com/jrsteele09/revalytiq-client/internal/utils"
)

const (
	msgProfileUpdated = "Profile updated"
	msgUpdateFailed   = "Update failed"
)

type ProfileForm struct {
	Username string
	Email    string
}

// ProfileDraft prefills the profile form from the session. The decision is not
// DecisionAllow while the user is unknown.
func (p *Pages) ProfileDraft() (Decision, ProfileForm) {
	state := p.store.Current()
	decision := Guard(state)
	if decision.Kind != DecisionAllow {
		return decision, ProfileForm{}
	}
	return decision, ProfileForm{Username: state.User.Username, Email: state.User.Email}
}

// SaveProfile sends the form and replaces the stored identity with the backend's
// answer.
func (p *Pages) SaveProfile(ctx context.Context, form ProfileForm) Outcome {
	user, err := p.backend.UpdateProfile(ctx, api.ProfileUpdate{
		Username: utils.Ptr(form.Username),
		Email:    utils.Ptr(form.Email),
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("profile update failed")
		return failed(err, msgUpdateFailed)
	}
	p.store.SetUser(user)
	return Outcome{Notice: msgProfileUpdated}
}

// Logout always ends the local session, whatever the backend answers.
func (p *Pages) Logout(ctx context.Context) Outcome {
	if err := p.backend.Logout(ctx); err != nil {
		p.logger.Info().Err(err).Msg("logout call failed, clearing local session anyway")
	}
	p.store.Clear()
	if p.credentials != nil {
		if err := p.credentials.Reset(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to drop stored credentials")
		}
	}
	return Outcome{Redirect: RouteLogin}
}
