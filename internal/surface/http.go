package surface

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"auth-bootstrap/internal/identity"
	"auth-bootstrap/internal/models"
	"auth-bootstrap/internal/util"
)

// Router builds the Chi router serving the login surface.
func (s *HTTPSurface) Router() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(loggerMiddleware(s.logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// The surface binds to loopback, but embedded webviews still preflight.
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/", s.handleIndex)
	router.Post("/method", s.handleMethod)
	router.Post("/email", s.handleEmailSubmit)
	router.Post("/email/verify", s.handleEmailVerify)
	router.Post("/phone", s.handlePhoneSubmit)
	router.Post("/phone/verify", s.handlePhoneVerify)
	router.Post("/resend", s.handleResend)
	router.Post("/signout", s.handleSignOut)
	router.Post("/retry", s.handleRetry)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"auth-bootstrap"}`))
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	return router
}

func (s *HTTPSurface) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := pageData{
		State:    s.view.State.String(),
		Step:     s.step,
		Name:     s.view.Name,
		FormName: s.name,
		Email:    s.email,
		Phone:    s.phone,
		Message:  s.message,
		MsgKind:  s.msgKind,
		Notice:   s.view.Message,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		util.Error("Failed to render login surface", util.ErrorField(err))
	}
}

func (s *HTTPSurface) handleMethod(w http.ResponseWriter, r *http.Request) {
	switch r.FormValue("method") {
	case models.KindEmail:
		s.setStep(stepEmailForm)
	case models.KindPhone:
		s.setStep(stepPhoneForm)
	default:
		s.setStep(stepMethodSelect)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HTTPSurface) handleEmailSubmit(w http.ResponseWriter, r *http.Request) {
	name := util.SanitizeInput(r.FormValue("name"))
	email := util.SanitizeInput(r.FormValue("email"))

	if name == "" || email == "" {
		s.setMessage("error", "Please fill in all fields")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !util.IsValidEmail(email) || util.ContainsSuspicious(email) {
		s.setMessage("error", "Please enter a valid email address")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.mu.Lock()
	s.name = name
	s.email = email
	s.mu.Unlock()

	if err := s.broker.RequestCode(r.Context(), models.KindEmail, email, name); err != nil {
		s.setMessage("error", userFacing(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.setStep(stepEmailCode)
	s.setMessage("success", "PIN sent to your email")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HTTPSurface) handleEmailVerify(w http.ResponseWriter, r *http.Request) {
	pin := r.FormValue("pin")
	if !util.IsValidCode(pin) {
		s.setMessage("error", "Please enter a valid 6-digit PIN")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.mu.Lock()
	email := s.email
	s.mu.Unlock()

	if _, err := s.broker.VerifyCode(r.Context(), email, pin); err != nil {
		s.setMessage("error", userFacing(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	// The machine takes over from the session-change listener.
	s.setMessage("success", "Sign in successful!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HTTPSurface) handlePhoneSubmit(w http.ResponseWriter, r *http.Request) {
	name := util.SanitizeInput(r.FormValue("name"))
	phone := util.SanitizeInput(r.FormValue("phone"))

	if name == "" || phone == "" {
		s.setMessage("error", "Please fill in all fields")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !util.IsValidPhone(phone) {
		s.setMessage("error", "Please enter a valid phone number")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.mu.Lock()
	s.name = name
	s.phone = util.NormalizePhone(phone)
	s.mu.Unlock()

	if err := s.broker.RequestCode(r.Context(), models.KindPhone, phone, name); err != nil {
		s.setMessage("error", userFacing(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.setStep(stepPhoneCode)
	s.setMessage("success", "Code sent by SMS")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HTTPSurface) handlePhoneVerify(w http.ResponseWriter, r *http.Request) {
	otp := r.FormValue("otp")
	if !util.IsValidCode(otp) {
		s.setMessage("error", "Please enter a valid 6-digit code")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.mu.Lock()
	phone := s.phone
	s.mu.Unlock()

	if _, err := s.broker.VerifyCode(r.Context(), phone, otp); err != nil {
		s.setMessage("error", userFacing(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.setMessage("success", "Sign in successful!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HTTPSurface) handleResend(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	step, name, email, phone := s.step, s.name, s.email, s.phone
	s.mu.Unlock()

	var err error
	switch step {
	case stepEmailCode:
		err = s.broker.RequestCode(r.Context(), models.KindEmail, email, name)
	case stepPhoneCode:
		err = s.broker.RequestCode(r.Context(), models.KindPhone, phone, name)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err != nil {
		s.setMessage("error", userFacing(err))
	} else {
		s.setMessage("success", "Code resent")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HTTPSurface) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	controller := s.controller
	s.mu.Unlock()

	if controller != nil {
		if err := controller.SignOut(r.Context()); err != nil {
			s.setMessage("error", "Sign out failed, please try again")
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HTTPSurface) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	controller := s.controller
	s.mu.Unlock()

	if controller != nil {
		// Reload blocks on the readiness gate; run it off the request so the
		// redirect lands immediately. The request context dies with the
		// request, hence Background.
		go func() {
			if err := controller.Reload(context.Background()); err != nil {
				util.Warn("Manual retry failed", util.ErrorField(err))
			}
		}()
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// loggerMiddleware logs every surface request.
func loggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Debug("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// userFacing keeps provider internals out of the form while preserving the
// useful part of delivery and code errors.
func userFacing(err error) string {
	if err == nil {
		return ""
	}
	var invalid *identity.InvalidCodeError
	if errors.As(err, &invalid) {
		if invalid.Message != "" {
			return invalid.Message
		}
		return "Wrong or expired code, please try again"
	}
	if identity.IsDeliveryError(err) {
		return "Could not reach the sign-in service, please try again"
	}
	return "Something went wrong, please try again"
}

type pageData struct {
	State    string
	Step     string
	Name     string
	FormName string
	Email    string
	Phone    string
	Message  string
	MsgKind  string
	Notice   string
}
