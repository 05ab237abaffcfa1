package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/darkden-lab/pgbrowser/internal/mail"
)

// EventResetInstructionsSent is recorded after reset instructions were mailed.
const EventResetInstructionsSent = "reset_password_instructions_sent"

// EventRecorder receives account events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, userID, action, resource string, details map[string]interface{})
}

type RecoveryConfig struct {
	AppName          string
	ExternalURL      string
	Recoverable      bool
	SendChangeNotice bool
	SendResetNotice  bool
	SubjectReset     string
	SubjectChange    string
	SubjectNotice    string
}

// Recovery implements password change and reset on top of AuthService. A
// password update whose notification mail cannot be sent is rolled back, so
// the caller can report that the password has not been changed.
type Recovery struct {
	service *AuthService
	mailer  mail.Mailer
	events  EventRecorder
	cfg     RecoveryConfig
	logger  zerolog.Logger
}

func NewRecovery(service *AuthService, mailer mail.Mailer, events EventRecorder, cfg RecoveryConfig, logger zerolog.Logger) *Recovery {
	return &Recovery{
		service: service,
		mailer:  mailer,
		events:  events,
		cfg:     cfg,
		logger:  logger,
	}
}

func (r *Recovery) Service() *AuthService { return r.service }

// ResetWithin is the lifetime of reset tokens.
func (r *Recovery) ResetWithin() time.Duration { return r.service.jwt.ResetDuration() }

func (r *Recovery) baseURL() string {
	return strings.TrimRight(r.cfg.ExternalURL, "/") + "/browser/reset_password"
}

// ResetLink returns the external URL of the reset form for token.
func (r *Recovery) ResetLink(token string) string {
	return r.baseURL() + "/" + token
}

type mailData struct {
	Email     string
	AppName   string
	ResetLink string
}

func (r *Recovery) send(ctx context.Context, user *User, subject, template, link string) error {
	msg, err := mail.Compose(user.Email, subject, template, mailData{
		Email:     user.Email,
		AppName:   r.cfg.AppName,
		ResetLink: link,
	})
	if err != nil {
		return err
	}
	return r.mailer.Send(ctx, msg)
}

// ChangePassword sets a new password for user and sends the change notice.
func (r *Recovery) ChangePassword(ctx context.Context, user *User, password string) error {
	previous := user.PasswordHash
	if err := r.service.SetPassword(ctx, user, password); err != nil {
		return err
	}
	if !r.cfg.SendChangeNotice {
		return nil
	}

	link := ""
	if r.cfg.Recoverable {
		link = r.baseURL()
	}
	if err := r.send(ctx, user, r.cfg.SubjectChange, mail.ChangeNotice, link); err != nil {
		r.rollback(ctx, user, previous)
		return err
	}
	return nil
}

// SendResetInstructions mails a fresh reset link to user and returns the
// token it carries.
func (r *Recovery) SendResetInstructions(ctx context.Context, user *User) (string, error) {
	token, err := r.service.GenerateResetToken(user)
	if err != nil {
		return "", err
	}
	if err := r.send(ctx, user, r.cfg.SubjectReset, mail.ResetInstructions, r.ResetLink(token)); err != nil {
		return "", err
	}

	if r.events != nil {
		r.events.RecordEvent(ctx, user.ID, EventResetInstructionsSent, "user/"+user.ID, map[string]interface{}{
			"email": user.Email,
		})
	}
	return token, nil
}

// ResetPassword sets the password chosen through a reset link and sends the
// reset notice.
func (r *Recovery) ResetPassword(ctx context.Context, user *User, password string) error {
	previous := user.PasswordHash
	if err := r.service.SetPassword(ctx, user, password); err != nil {
		return err
	}
	if !r.cfg.SendResetNotice {
		return nil
	}
	if err := r.send(ctx, user, r.cfg.SubjectNotice, mail.ResetNotice, ""); err != nil {
		r.rollback(ctx, user, previous)
		return err
	}
	return nil
}

// TokenStatus reports whether a reset token is expired or invalid and the
// user it belongs to.
func (r *Recovery) TokenStatus(ctx context.Context, token string) (expired, invalid bool, user *User) {
	return r.service.ResetTokenStatus(ctx, token)
}

func (r *Recovery) rollback(ctx context.Context, user *User, previous string) {
	if err := r.service.restorePasswordHash(ctx, user, previous); err != nil {
		r.logger.Error().Err(err).Str("user_id", user.ID).Msg("password kept after failed notification")
	}
}

// FormatWithin renders a token lifetime the way it is shown to users,
// e.g. "5 days" or "2 hours".
func FormatWithin(d time.Duration) string {
	unit := func(n int64, name string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", name)
		}
		return fmt.Sprintf("%d %ss", n, name)
	}
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return unit(int64(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return unit(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return unit(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}
