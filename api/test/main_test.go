package test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnly-dev/learnly/api"
	"github.com/learnly-dev/learnly/config"
	"github.com/learnly-dev/learnly/core/claims"
	"github.com/learnly-dev/learnly/core/user"
	"github.com/learnly-dev/learnly/database"
	"github.com/learnly-dev/learnly/rate"
	"github.com/learnly-dev/learnly/validate"
)

type TestEnv struct {
	DB     *sqlx.DB
	Server *httptest.Server
	URL    string

	AdminEmail string
	AdminPass  string
	UserEmail  string
	UserPass   string
	UserID     string

	WebhookSecret string
	Paypal        *mockPaypal
	Stripe        *mockStripe
}

// NewTestEnv boots a throwaway postgres container, migrates the schema,
// seeds an admin and a regular user and starts the full api with mocked
// payment providers.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=" + name,
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}
	t.Cleanup(func() { _ = pool.Purge(res) })

	cfg := config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       net.JoinHostPort("localhost", res.GetPort("5432/tcp")),
		Name:       name,
		DisableTLS: true,
	}

	var db *sqlx.DB
	err = pool.Retry(func() error {
		db, err = database.Open(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return database.StatusCheck(ctx, db)
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to test db: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating test db: %w", err)
	}

	env := &TestEnv{
		DB:            db,
		AdminEmail:    "admin@test.com",
		AdminPass:     "admin-test-pass",
		UserEmail:     "user@test.com",
		UserPass:      "user-test-pass",
		WebhookSecret: "whsec_test",
	}

	if _, err := seedUser(db, env.AdminEmail, env.AdminPass, claims.RoleAdmin); err != nil {
		return nil, fmt.Errorf("seeding admin: %w", err)
	}

	usrID, err := seedUser(db, env.UserEmail, env.UserPass, claims.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("seeding user: %w", err)
	}
	env.UserID = usrID

	env.Paypal = &mockPaypal{}
	ppSrv := httptest.NewServer(env.Paypal.handle())
	t.Cleanup(ppSrv.Close)

	pp, err := paypal.NewClient("test-client", "test-secret", ppSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}

	env.Stripe = &mockStripe{}
	stSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(stSrv.Close)

	sb := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL: stripe.String(stSrv.URL + "/v1"),
	})
	strp := &stripecl.API{}
	strp.Init("sk_test_xyz", &stripe.Backends{API: sb, Connect: sb, Uploads: sb})

	session := scs.New()
	session.Lifetime = time.Hour

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	limiter := rate.NewLimiter(1000, 100, rate.Every(time.Microsecond))

	mux := api.APIMux(api.APIConfig{
		Log:       logger,
		DB:        db,
		Session:   session,
		Paypal:    pp,
		Stripe:    strp,
		StripeCfg: config.Stripe{WebhookSecret: env.WebhookSecret},
		Limiter:   limiter,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}
	srv.Client().Jar = jar

	env.Server = srv
	env.URL = srv.URL

	return env, nil
}

func (te *TestEnv) Client() *http.Client {
	return te.Server.Client()
}

func seedUser(db *sqlx.DB, email string, pass string, role string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:           validate.GenerateID(),
		Name:         strings.Split(email, "@")[0],
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return usr.ID, user.Create(context.Background(), db, usr)
}

func Login(srv *httptest.Server, email string, pass string) error {
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, pass)

	w, err := srv.Client().Post(srv.URL+"/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: status code %s", w.Status)
	}
	return nil
}

func Logout(srv *httptest.Server) error {
	w, err := srv.Client().Post(srv.URL+"/auth/logout", "application/json", nil)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logout failed: status code %s", w.Status)
	}
	return nil
}
