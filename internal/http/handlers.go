package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"gestao/internal/app"
	"gestao/internal/auth"
	applog "gestao/internal/log"
	"gestao/internal/services"
	"gestao/internal/views"
)

type sessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	UID           string           `json:"uid,omitempty"`
	Loading       bool             `json:"loading"`
	Screen        views.ScreenInfo `json:"screen"`
	Notice        *app.Notice      `json:"notice,omitempty"`
	Revision      uint64           `json:"revision"`
}

type screensResponse struct {
	Screens []views.ScreenInfo `json:"screens"`
	Current string             `json:"current"`
}

type dashboardResponse struct {
	views.Dashboard
	Loading bool `json:"loading"`
}

type historyResponse struct {
	views.History
	Loading bool `json:"loading"`
}

func newSessionResponse(st app.State) sessionResponse {
	return sessionResponse{
		Authenticated: st.Session.IsAuthenticated(),
		UID:           st.Session.UID,
		Loading:       st.Loading,
		Screen:        st.Screen.Info(),
		Notice:        st.Notice,
		Revision:      st.Revision,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			ServiceUnavailableError("not ready").Write(w)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, applog.OpSignIn, s.deps.Auth.SignIn)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, applog.OpSignUp, s.deps.Auth.SignUp)
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request, op string, call func(ctx context.Context, email, password string) error) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Formato de requisição inválido").Write(w)
		return
	}

	ctx := r.Context()
	logger := applog.FromContext(ctx)
	if err := call(ctx, p.Get("email"), p.GetRaw("password")); err != nil {
		msg := auth.Message(err)
		s.deps.State.Dispatch(app.NoticeRaised{Message: msg})

		var ae *auth.AuthError
		if errors.As(err, &ae) && ae.Code == auth.CodeInternal {
			logger.ErrorContext(ctx, "Authentication failed", applog.FieldOperation, op, applog.FieldError, err)
			InternalServerError(msg).Write(w)
			return
		}
		logger.InfoContext(ctx, "Authentication rejected", applog.FieldOperation, op, applog.FieldError, err)
		UnauthorizedError(msg).Write(w)
		return
	}

	st := s.deps.State.State()
	logger.InfoContext(ctx, "Signed in", applog.FieldOperation, op, applog.FieldUserID, st.Session.UID)
	NewResponse().JSON(newSessionResponse(st)).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := s.deps.Auth.SignOut(r.Context()); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Sign out failed",
			applog.FieldOperation, applog.OpSignOut,
			applog.FieldError, err)
		InternalServerError(auth.Message(err)).Write(w)
		return
	}
	NewResponse().JSON(newSessionResponse(s.deps.State.State())).Write(w)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	NewResponse().JSON(newSessionResponse(s.deps.State.State())).Write(w)
}

// handleScreens lists the screens on GET and selects one on POST.
func (s *Server) handleScreens(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}

	st := s.deps.State.State()
	if r.Method == http.MethodPost {
		p := NewRequestBodyParser(r)
		if err := p.Parse(); err != nil {
			BadRequestError("Formato de requisição inválido").Write(w)
			return
		}
		screen, ok := views.ParseScreen(p.Get("screen"))
		if !ok {
			NotFoundError("Tela desconhecida").Write(w)
			return
		}
		st = s.deps.State.Dispatch(app.ScreenSelected{Screen: screen})
	}

	resp := screensResponse{Current: st.Screen.Info().ID}
	for _, sc := range views.Screens() {
		resp.Screens = append(resp.Screens, sc.Info())
	}
	NewResponse().JSON(resp).Write(w)
}

// handleNotice clears the current notice.
func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	s.deps.State.Dispatch(app.NoticeCleared{})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	st, ok := s.authenticatedState(w)
	if !ok {
		return
	}

	key := viewKey(st)
	d, hit := s.dashboards.Get(key)
	if !hit {
		d = views.NewDashboard(st.Transactions, s.recentLimit)
		s.dashboards.Set(key, d)
	}
	NewResponse().JSON(dashboardResponse{Dashboard: d, Loading: st.Loading}).Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	st, ok := s.authenticatedState(w)
	if !ok {
		return
	}

	key := viewKey(st)
	h, hit := s.histories.Get(key)
	if !hit {
		h = views.NewHistory(st.Transactions)
		s.histories.Set(key, h)
	}
	NewResponse().JSON(historyResponse{History: h, Loading: st.Loading}).Write(w)
}

// handleCreateTransaction validates the form and starts the write. The
// response does not wait for the store: 202 means handed off.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if _, ok := s.authenticatedState(w); !ok {
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Formato de requisição inválido").Write(w)
		return
	}
	form := services.Form{
		Description: p.Get("description"),
		Amount:      p.Get("amount"),
		Kind:        p.Get("kind"),
		Category:    p.Get("category"),
	}

	ctx := r.Context()
	tx, err := s.deps.Writer.Submit(ctx, form)
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			s.deps.State.Dispatch(app.NoticeRaised{Message: ve.Message()})
			UnprocessableEntityError(ve.Field, ve.Message()).Write(w)
		case errors.Is(err, services.ErrNotAuthenticated):
			UnauthorizedError("Sessão expirada").Write(w)
		default:
			applog.FromContext(ctx).ErrorContext(ctx, "Failed to submit transaction", applog.FieldError, err)
			s.deps.State.Dispatch(app.NoticeRaised{Message: "Erro: " + err.Error()})
			InternalServerError("Erro ao salvar transação").Write(w)
		}
		return
	}

	NewResponse().
		Status(http.StatusAccepted).
		Header("Location", "/history").
		JSON(views.NewRow(tx)).
		Write(w)
}

// authenticatedState writes a 401 and returns false when nobody is signed in.
func (s *Server) authenticatedState(w http.ResponseWriter) (app.State, bool) {
	st := s.deps.State.State()
	if !st.Session.IsAuthenticated() {
		UnauthorizedError("Faça login para continuar").Write(w)
		return app.State{}, false
	}
	return st, true
}

func viewKey(st app.State) string {
	return st.Session.UID + ":" + strconv.FormatUint(st.Revision, 10)
}
