package browser

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/flash"
	"github.com/darkden-lab/pgbrowser/internal/httputil"
	"github.com/darkden-lab/pgbrowser/internal/i18n"
	"github.com/darkden-lab/pgbrowser/internal/mail"
)

type changePasswordForm struct {
	Password           string `json:"password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}

type forgotPasswordForm struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordForm struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type recoveryPage struct {
	*i18n.Translator
	formPage
	Messages []flash.Message
	Token    string
}

func (m *Module) renderRecoveryPage(w http.ResponseWriter, r *http.Request, t executor, tr *i18n.Translator, values map[string]string, errs formErrors, token string) {
	page := recoveryPage{
		Translator: tr,
		formPage:   formPage{values: values, errors: errs, label: func(s string) string { return tr.T(s) }},
		Messages:   flash.Pop(r),
		Token:      token,
	}
	body, err := render(t, page)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to render recovery form")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	httputil.WriteContent(w, http.StatusOK, httputil.ContentTypeHTML, body)
}

// recoveryFailure is the text shown when a password flow fails after the
// form validated, usually because the notification mail could not be sent.
func (m *Module) recoveryFailure(t *i18n.Translator, err error) string {
	m.logger.Error().Err(err).Str("kind", mail.Classify(err).String()).Msg("password recovery failed")

	switch mail.Classify(err) {
	case mail.KindSocket:
		return t.T("SMTP Socket error: %s\nYour password has not been changed.", err)
	case mail.KindSMTP:
		return t.T("SMTP error: %s\nYour password has not been changed.", err)
	default:
		return t.T("Error: %s\nYour password has not been changed.", err)
	}
}

func (m *Module) redirectAfter(view string) string {
	if view != "" {
		return view
	}
	return m.postLoginView()
}

func (m *Module) currentUser(ctx context.Context) (*auth.User, error) {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" {
		return nil, auth.ErrUserNotFound
	}
	return m.recovery.Service().GetUserByID(ctx, uid)
}

func (m *Module) validateChangePassword(t *i18n.Translator, user *auth.User, form changePasswordForm) formErrors {
	errs := m.check(form, map[string]string{
		"password.required":             t.T("Password not provided"),
		"new_password.required":         t.T("Password not provided"),
		"new_password_confirm.required": t.T("Password not provided"),
		"new_password_confirm.eqfield":  t.T("Passwords do not match"),
	})
	m.checkLength(errs, "new_password", form.NewPassword,
		t.T("Password must be at least %d characters", m.cfg.PasswordMinLength))

	if !errs.Empty() {
		return errs
	}
	if !m.recovery.Service().VerifyPassword(user, form.Password) {
		errs.add("password", t.T("Invalid password"))
	} else if form.Password == form.NewPassword {
		errs.add("password", t.T("Your new password must be different than your previous password."))
	}
	return errs
}

func (m *Module) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := m.translator(r)
	isJSON := httputil.IsJSONRequest(r)

	user, err := m.currentUser(ctx)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	errs := formErrors{}
	if r.Method == http.MethodPost {
		var form changePasswordForm
		if err := decodeForm(r, &form); err != nil {
			errs.add(formLevel, err.Error())
		} else {
			errs = m.validateChangePassword(t, user, form)
		}

		if errs.Empty() {
			if err := m.recovery.ChangePassword(ctx, user, form.NewPassword); err != nil {
				failure := m.recoveryFailure(t, err)
				if isJSON {
					errs.add(formLevel, failure)
					writeFormErrors(w, errs)
					return
				}
				flash.Add(r, flash.CategoryDanger, failure)
			} else if isJSON {
				writeFormJSON(w, http.StatusOK, map[string]interface{}{
					"user": map[string]string{"id": user.ID},
				})
				return
			} else {
				flash.Add(r, flash.CategorySuccess, t.T("You successfully changed your password."))
				http.Redirect(w, r, m.redirectAfter(m.cfg.PostChangeView), http.StatusFound)
				return
			}
		} else if isJSON {
			writeFormErrors(w, errs)
			return
		}
	}

	m.renderRecoveryPage(w, r, changePasswordPage, t, nil, errs, "")
}

func (m *Module) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := m.translator(r)
	isJSON := httputil.IsJSONRequest(r)

	errs := formErrors{}
	values := map[string]string{}
	if r.Method == http.MethodPost {
		var form forgotPasswordForm
		if err := decodeForm(r, &form); err != nil {
			errs.add(formLevel, err.Error())
		} else {
			values["email"] = form.Email
			errs = m.check(form, map[string]string{
				"email.required": t.T("Email not provided"),
				"email.email":    t.T("Invalid email address"),
			})
		}

		var user *auth.User
		if errs.Empty() {
			var err error
			user, err = m.recovery.Service().GetUserByEmail(ctx, form.Email)
			switch {
			case errors.Is(err, auth.ErrUserNotFound):
				errs.add("email", t.T("Specified user does not exist"))
			case err != nil:
				errs.add(formLevel, t.T("Error: %s\nYour password has not been changed.", err))
			}
		}

		if !errs.Empty() {
			if isJSON {
				writeFormErrors(w, errs)
				return
			}
		} else if _, err := m.recovery.SendResetInstructions(ctx, user); err != nil {
			failure := m.recoveryFailure(t, err)
			if isJSON {
				errs.add(formLevel, failure)
				writeFormErrors(w, errs)
				return
			}
			flash.Add(r, flash.CategoryDanger, failure)
		} else {
			m.logger.Info().Str("user_id", user.ID).Msg("reset password instructions sent")
			if isJSON {
				writeFormJSON(w, http.StatusOK, map[string]interface{}{})
				return
			}
			flash.Add(r, flash.CategoryInfo, t.T("Instructions to reset your password have been sent to %s.", user.Email))
		}
	}

	m.renderRecoveryPage(w, r, forgotPasswordPage, t, values, errs, "")
}

func (m *Module) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := m.translator(r)
	isJSON := httputil.IsJSONRequest(r)
	token := mux.Vars(r)["token"]

	expired, invalid, user := m.recovery.TokenStatus(ctx, token)
	if invalid {
		flash.Add(r, flash.CategoryError, t.T("Invalid reset password token."))
	}
	if expired && user != nil {
		if _, err := m.recovery.SendResetInstructions(ctx, user); err != nil {
			m.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to resend reset instructions")
		}
		flash.Add(r, flash.CategoryError, t.T("You did not reset your password within %s. New instructions have been sent to %s.",
			auth.FormatWithin(m.recovery.ResetWithin()), user.Email))
	}
	if invalid || expired || user == nil {
		if isJSON {
			writeFormJSON(w, http.StatusBadRequest, map[string]interface{}{
				"errors": formErrors{formLevel: flashTexts(flash.Pop(r))},
			})
			return
		}
		http.Redirect(w, r, URLPrefix+"/reset_password", http.StatusFound)
		return
	}

	errs := formErrors{}
	if r.Method == http.MethodPost {
		var form resetPasswordForm
		if err := decodeForm(r, &form); err != nil {
			errs.add(formLevel, err.Error())
		} else {
			errs = m.check(form, map[string]string{
				"password.required":         t.T("Password not provided"),
				"password_confirm.required": t.T("Password not provided"),
				"password_confirm.eqfield":  t.T("Passwords do not match"),
			})
			m.checkLength(errs, "password", form.Password,
				t.T("Password must be at least %d characters", m.cfg.PasswordMinLength))
		}

		switch {
		case !errs.Empty():
			if isJSON {
				writeFormErrors(w, errs)
				return
			}
		default:
			if err := m.recovery.ResetPassword(ctx, user, form.Password); err != nil {
				failure := m.recoveryFailure(t, err)
				if isJSON {
					errs.add(formLevel, failure)
					writeFormErrors(w, errs)
					return
				}
				flash.Add(r, flash.CategoryDanger, failure)
				break
			}

			session, err := m.recovery.Service().IssueSession(user)
			if err != nil {
				m.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to log in after reset")
			} else if m.sessions != nil {
				m.sessions.Login(w, session)
			}

			if isJSON {
				writeFormJSON(w, http.StatusOK, map[string]interface{}{
					"user": map[string]string{"id": user.ID},
				})
				return
			}
			flash.Add(r, flash.CategorySuccess,
				t.T("You successfully reset your password and you have been logged in automatically."))
			http.Redirect(w, r, m.redirectAfter(m.cfg.PostResetView), http.StatusFound)
			return
		}
	}

	m.renderRecoveryPage(w, r, resetPasswordPage, t, nil, errs, token)
}

func flashTexts(messages []flash.Message) []string {
	texts := make([]string, 0, len(messages))
	for _, msg := range messages {
		texts = append(texts, msg.Text)
	}
	return texts
}
