package api

import (
	"context"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/background"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/middleware"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/cache"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/config"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/auth"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/content"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/course"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/enrollment"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/payment"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/progress"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/token"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/user"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/rate"
	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin         string
	Log                logrus.FieldLogger
	DB                 *sqlx.DB
	Session            *scs.SessionManager
	Cache              *cache.Cache
	Mailer             token.Mailer
	TokenTimeout       time.Duration
	Background         *background.Background
	Stripe             *stripecl.API
	StripeCfg          config.Stripe
	Providers          map[string]auth.Provider
	LoginRedirectURL   string
	ActivationRequired bool
	PublicURL          string
	Limiter            *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate()
	admin := auth.Admin()
	instructor := auth.Instructor()

	var limited web.Middleware
	if cfg.Limiter != nil {
		limited = middleware.Limit(cfg.Limiter)
	}

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session, cfg.ActivationRequired), limited)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodPost, "/tokens", token.HandleToken(cfg.DB, cfg.Mailer, cfg.TokenTimeout, cfg.Background), limited)
	a.Handle(http.MethodPost, "/tokens/activate", token.HandleActivation(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/tokens/recover", token.HandleRecovery(cfg.DB))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/{id}", user.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPost, "/users", user.HandleCreate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/courses/owned", course.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/courses/taught", course.HandleListTaught(cfg.DB), instructor)
	a.Handle(http.MethodGet, "/courses/{course_id}/modules", content.HandleListModules(cfg.DB))
	a.Handle(http.MethodGet, "/courses/{course_id}/content", content.HandleListByCourse(cfg.DB))
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(cfg.DB, cfg.Stripe), instructor)
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(cfg.DB, cfg.Stripe), instructor)

	a.Handle(http.MethodPost, "/modules", content.HandleCreateModule(cfg.DB), instructor)
	a.Handle(http.MethodGet, "/modules/{module_id}/content", content.HandleListByModule(cfg.DB))
	a.Handle(http.MethodGet, "/content/{id}", content.HandleShowItem(cfg.DB))
	a.Handle(http.MethodPost, "/content", content.HandleCreateItem(cfg.DB), instructor)
	a.Handle(http.MethodPut, "/content/{id}", content.HandleUpdateItem(cfg.DB), instructor)

	a.Handle(http.MethodPost, "/enrollments", enrollment.HandleEnroll(cfg.DB), authen)
	a.Handle(http.MethodGet, "/enrollments/check/{course_id}", enrollment.HandleCheck(cfg.DB), authen)
	a.Handle(http.MethodGet, "/enrollments", enrollment.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPatch, "/enrollments/{id}/progress", enrollment.HandleUpdateProgress(cfg.DB), authen)
	a.Handle(http.MethodPost, "/enrollments/{id}/access", enrollment.HandleRegisterAccess(cfg.DB), authen)
	a.Handle(http.MethodGet, "/enrollments/{id}/certificate", enrollment.HandleCertificate(cfg.DB, cfg.PublicURL), authen)
	a.Handle(http.MethodPatch, "/enrollments/{id}", enrollment.HandleUpdateStatus(cfg.DB), authen)

	a.Handle(http.MethodPost, "/progress/content", progress.HandleRecord(cfg.DB, cfg.Cache), authen)
	a.Handle(http.MethodPost, "/progress/video", progress.HandleVideo(cfg.DB, cfg.Cache), authen)
	a.Handle(http.MethodPost, "/progress/quiz", progress.HandleQuiz(cfg.DB, cfg.Cache), authen)
	a.Handle(http.MethodPost, "/progress/document", progress.HandleDocument(cfg.DB, cfg.Cache), authen)
	a.Handle(http.MethodGet, "/progress/content/{content_id}", progress.HandleShowContent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/progress/module/{module_id}", progress.HandleListByModule(cfg.DB), authen)
	a.Handle(http.MethodGet, "/progress/course/{course_id}/summary", progress.HandleSummary(cfg.DB, cfg.Cache), authen)
	a.Handle(http.MethodGet, "/progress/course/{course_id}", progress.HandleListByCourse(cfg.DB), authen)
	a.Handle(http.MethodGet, "/progress/user", progress.HandleListByUser(cfg.DB), authen)

	a.Handle(http.MethodPost, "/payments/checkout", payment.HandleCheckout(cfg.DB, cfg.Stripe, cfg.StripeCfg, cfg.Log), authen, limited)
	a.Handle(http.MethodGet, "/payments/checkout/{session_id}", payment.HandleShowCheckout(cfg.DB, cfg.Stripe), authen)
	a.Handle(http.MethodPost, "/payments/webhook", payment.HandleWebhook(cfg.DB, cfg.StripeCfg, cfg.Log))
	a.Handle(http.MethodPost, "/payments/accounts", payment.HandleCreateAccount(cfg.DB, cfg.Stripe, cfg.StripeCfg), instructor)
	a.Handle(http.MethodGet, "/payments/accounts/current", payment.HandleShowAccount(cfg.DB, cfg.Stripe), instructor)
	a.Handle(http.MethodGet, "/payments/transactions/export", payment.HandleExportTransactions(cfg.DB), instructor)
	a.Handle(http.MethodGet, "/payments/transactions", payment.HandleListTransactions(cfg.DB), instructor)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
