package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"

	"github.com/learnly-dev/learnly/api/middleware"
	"github.com/learnly-dev/learnly/api/web"
	"github.com/learnly-dev/learnly/config"
	"github.com/learnly-dev/learnly/core/auth"
	"github.com/learnly-dev/learnly/core/cart"
	"github.com/learnly-dev/learnly/core/coupon"
	"github.com/learnly-dev/learnly/core/course"
	"github.com/learnly-dev/learnly/core/lesson"
	"github.com/learnly-dev/learnly/core/order"
	"github.com/learnly-dev/learnly/core/user"
	"github.com/learnly-dev/learnly/rate"
)

type APIConfig struct {
	CorsOrigin       string
	Log              logrus.FieldLogger
	DB               *sqlx.DB
	Session          *scs.SessionManager
	Paypal           *paypal.Client
	Stripe           *stripecl.API
	StripeCfg        config.Stripe
	Providers        map[string]auth.Provider
	LoginRedirectURL string
	Limiter          *rate.Limiter
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

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	limited := middleware.RateLimit(cfg.Limiter)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/{id}", user.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPost, "/users", user.HandleCreate(cfg.DB), authen)

	a.Handle(http.MethodGet, "/courses/owned", course.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/courses/{course_id}/lessons", lesson.HandleListByCourse(cfg.DB))
	a.Handle(http.MethodGet, "/courses/{course_id}/progress", lesson.HandleListProgressByCourse(cfg.DB), authen)
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/lessons/{id}/full", lesson.HandleShowFull(cfg.DB), authen)
	a.Handle(http.MethodGet, "/lessons/{id}/free", lesson.HandleShowFree(cfg.DB))
	a.Handle(http.MethodGet, "/lessons/{id}", lesson.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/lessons", lesson.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/lessons", lesson.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/lessons/{id}/progress", lesson.HandleUpdateProgress(cfg.DB), authen)
	a.Handle(http.MethodPut, "/lessons/{id}", lesson.HandleUpdate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(cfg.DB), authen)
	a.Handle(http.MethodPut, "/cart/items", cart.HandleCreateItem(cfg.DB), authen)
	a.Handle(http.MethodPut, "/cart/items/{course_id}", cart.HandleUpdateItem(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart/items/{course_id}", cart.HandleDeleteItem(cfg.DB), authen)
	a.Handle(http.MethodPut, "/cart/coupon", cart.HandleApplyCoupon(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart/coupon", cart.HandleRemoveCoupon(cfg.DB), authen)

	a.Handle(http.MethodPost, "/coupons/validate", coupon.HandleValidate(cfg.DB), limited)
	a.Handle(http.MethodGet, "/coupons/{id}", coupon.HandleShow(cfg.DB), admin)
	a.Handle(http.MethodGet, "/coupons", coupon.HandleList(cfg.DB), admin)
	a.Handle(http.MethodPost, "/coupons", coupon.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/coupons/{id}/toggle", coupon.HandleToggle(cfg.DB), admin)
	a.Handle(http.MethodPut, "/coupons/{id}", coupon.HandleUpdate(cfg.DB), admin)
	a.Handle(http.MethodDelete, "/coupons/{id}", coupon.HandleDelete(cfg.DB), admin)

	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPost, "/orders/paypal", order.HandlePaypalCheckout(cfg.DB, cfg.Paypal), authen)
	a.Handle(http.MethodPost, "/orders/paypal/{id}/capture", order.HandlePaypalCapture(cfg.DB, cfg.Paypal), authen)
	a.Handle(http.MethodPost, "/orders/stripe", order.HandleStripeCheckout(cfg.DB, cfg.Stripe, cfg.StripeCfg), authen)
	a.Handle(http.MethodPost, "/orders/stripe/capture", order.HandleStripeCapture(cfg.DB, cfg.StripeCfg))

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
