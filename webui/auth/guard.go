package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Error codes written by the guard.
const (
	CodeUnauthorized = "unauthorized"
	CodeRateLimited  = "rate_limited"
	CodeBadRequest   = "bad_request"
)

// Defaults for Config.
const (
	DefaultLoginTTL     = 12 * time.Hour
	DefaultMaxAttempts  = 5
	DefaultLockout      = 5 * time.Minute
	DefaultFailureDelay = time.Second
)

// ErrorWriter writes an error envelope. The server passes its own so guard
// errors look like every other API error.
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// Config tunes a Guard. Zero fields take the defaults.
type Config struct {
	// LoginTTL is how long a dashboard login stays valid.
	LoginTTL time.Duration
	// MaxAttempts failed logins from one client within Lockout block that
	// client until the window ends.
	MaxAttempts int
	Lockout     time.Duration
	// FailureDelay slows every failed login.
	FailureDelay  time.Duration
	SecureCookies bool
	// Cost is the bcrypt cost; zero means DefaultCost.
	Cost int

	ClientIP   func(*http.Request) string
	WriteError ErrorWriter
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		LoginTTL:     DefaultLoginTTL,
		MaxAttempts:  DefaultMaxAttempts,
		Lockout:      DefaultLockout,
		FailureDelay: DefaultFailureDelay,
		Cost:         DefaultCost,
	}
}

// Guard holds the dashboard password hash, the live logins and the
// per-client failure counts.
type Guard struct {
	hash     string
	logins   *cache.Cache
	failures *cache.Cache
	cookie   CookieConfig
	config   Config
	logger   *zap.Logger
}

// NewGuard hashes password and returns a guard that admits requests
// carrying a login cookie issued by Login.
func NewGuard(password string, config Config, logger *zap.Logger) (*Guard, error) {
	def := DefaultConfig()
	if config.LoginTTL <= 0 {
		config.LoginTTL = def.LoginTTL
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.Lockout <= 0 {
		config.Lockout = def.Lockout
	}
	if config.FailureDelay < 0 {
		config.FailureDelay = 0
	}
	if config.Cost == 0 {
		config.Cost = def.Cost
	}
	if config.ClientIP == nil {
		config.ClientIP = remoteHost
	}
	if config.WriteError == nil {
		config.WriteError = writeJSONError
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hash, err := HashPasswordWithCost(password, config.Cost)
	if err != nil {
		return nil, err
	}

	cookie := DefaultCookieConfig(config.LoginTTL)
	cookie.Secure = config.SecureCookies

	return &Guard{
		hash:     hash,
		logins:   cache.New(config.LoginTTL, config.LoginTTL/2),
		failures: cache.New(config.Lockout, config.Lockout),
		cookie:   cookie,
		config:   config,
		logger:   logger.With(zap.String("component", "dashboard_auth")),
	}, nil
}

// Middleware rejects requests without a live login with 401.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := g.cookie.parse(r)
		if err == nil {
			if _, ok := g.logins.Get(token); ok {
				next.ServeHTTP(w, r)
				return
			}
		}
		g.logger.Debug("dashboard request without login",
			zap.String("path", r.URL.Path),
			zap.String("ip", g.config.ClientIP(r)))
		g.config.WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "dashboard login required")
	})
}

// Protect is Middleware for a HandlerFunc.
func (g *Guard) Protect(next http.HandlerFunc) http.HandlerFunc {
	return g.Middleware(next).ServeHTTP
}

// LoginRequest is the JSON body of POST /api/login. A form field named
// "password" is accepted too.
type LoginRequest struct {
	Password string `json:"password"`
}

// Login checks the password and sets the login cookie. It answers 204 on
// success, 401 on a wrong password and 429 while the client is locked out.
func (g *Guard) Login(w http.ResponseWriter, r *http.Request) {
	ip := g.config.ClientIP(r)
	if remaining, locked := g.lockedOut(ip); locked {
		g.logger.Warn("dashboard login locked out", zap.String("ip", ip), zap.Duration("remaining", remaining))
		w.Header().Set("Retry-After", retryAfter(remaining))
		g.config.WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "too many failed logins")
		return
	}

	password, ok := readPassword(r)
	if !ok {
		g.config.WriteError(w, http.StatusBadRequest, CodeBadRequest, "password is required")
		return
	}

	if err := VerifyPassword(password, g.hash); err != nil {
		attempts := g.recordFailure(ip)
		g.logger.Info("dashboard login failed", zap.String("ip", ip), zap.Int("attempts", attempts))
		if g.config.FailureDelay > 0 {
			select {
			case <-time.After(g.config.FailureDelay):
			case <-r.Context().Done():
			}
		}
		g.config.WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid password")
		return
	}

	token := uuid.NewString()
	g.logins.SetDefault(token, time.Now())
	g.failures.Delete(ip)
	http.SetCookie(w, g.cookie.issue(token))
	g.logger.Info("dashboard login", zap.String("ip", ip), zap.Int("active_logins", g.logins.ItemCount()))
	w.WriteHeader(http.StatusNoContent)
}

// Logout drops the caller's login, if any, and clears the cookie. It is
// idempotent.
func (g *Guard) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := g.cookie.parse(r); err == nil {
		g.logins.Delete(token)
		g.logger.Info("dashboard logout", zap.String("ip", g.config.ClientIP(r)))
	}
	http.SetCookie(w, g.cookie.clear())
	w.WriteHeader(http.StatusNoContent)
}

// ActiveLogins counts unexpired logins.
func (g *Guard) ActiveLogins() int {
	return g.logins.ItemCount()
}

// recordFailure counts a failed login. The window starts at the first
// failure and is not extended by later ones.
func (g *Guard) recordFailure(ip string) int {
	if err := g.failures.Add(ip, 1, cache.DefaultExpiration); err == nil {
		return 1
	}
	n, err := g.failures.IncrementInt(ip, 1)
	if err != nil {
		// The entry expired between Add and IncrementInt.
		g.failures.SetDefault(ip, 1)
		return 1
	}
	return n
}

func (g *Guard) lockedOut(ip string) (time.Duration, bool) {
	v, expires, ok := g.failures.GetWithExpiration(ip)
	if !ok {
		return 0, false
	}
	if n, _ := v.(int); n < g.config.MaxAttempts {
		return 0, false
	}
	return time.Until(expires), true
}

func readPassword(r *http.Request) (string, bool) {
	var req LoginRequest
	if ct := r.Header.Get("Content-Type"); ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return "", false
		}
		req.Password = r.PostFormValue("password")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", false
	}
	return req.Password, req.Password != ""
}

func retryAfter(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
