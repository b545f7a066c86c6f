package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"conecta/internal/engine"
	"conecta/internal/events"
	"conecta/internal/logger"
)

// Roles a token may carry.
const (
	RoleClient = "cliente"
	RoleVendor = "vendedor"
)

// AuthConfig enables bearer authentication when JWTSecret is set. Without a
// secret every request runs unauthenticated.
type AuthConfig struct {
	JWTSecret string
	Log       *logger.Logger
}

func (c AuthConfig) enabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

type Principal struct {
	Role   string
	UserID int64
}

// Actor renders the principal for the event log.
func (p Principal) Actor() string {
	return events.Actor(p.Role, p.UserID)
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Role   string `json:"rol"`
	UserID int64  `json:"uid"`
}

func authenticateJWT(token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Role != RoleClient && claims.Role != RoleVendor {
		return Principal{}, errors.New("rol claim must be cliente or vendedor")
	}
	if claims.UserID <= 0 {
		return Principal{}, errors.New("uid claim required")
	}
	return Principal{Role: claims.Role, UserID: claims.UserID}, nil
}

// SignToken mints an HS256 token for role and user id. A zero ttl means no expiry.
func SignToken(secret, role string, userID int64, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret required")
	}
	if role != RoleClient && role != RoleVendor {
		return "", errors.New("role must be cliente or vendedor")
	}
	if userID <= 0 {
		return "", errors.New("user id must be positive")
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  events.Actor(role, userID),
			IssuedAt: jwt.NewNumericDate(now),
		},
		Role:   role,
		UserID: userID,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	public := map[string]bool{
		path.Join(basePath, "health"):                       true,
		path.Join(basePath, "openapi.json"):                 true,
		path.Join(basePath, "chat-analisis/especialidades"): true,
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !cfg.enabled() || public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			principal, err := authenticateJWT(token, cfg.JWTSecret)
			if err != nil {
				log.Debug("rejected bearer token", "path", req.URL.Path, "error", err)
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

// actorFromContext names the caller for the event log. Open mode yields "".
func actorFromContext(ctx context.Context) string {
	if p, ok := principalFromContext(ctx); ok {
		return p.Actor()
	}
	return ""
}

// requireVendor passes when auth is off or the caller is vendorID.
func requireVendor(ctx context.Context, vendorID int64) error {
	p, ok := principalFromContext(ctx)
	if !ok {
		return nil
	}
	if p.Role != RoleVendor || p.UserID != vendorID {
		return engine.ForbiddenError{Reason: "operation reserved to the vendor it names"}
	}
	return nil
}

// requireClient passes when auth is off or the caller is clientID.
func requireClient(ctx context.Context, clientID int64) error {
	p, ok := principalFromContext(ctx)
	if !ok {
		return nil
	}
	if p.Role != RoleClient || p.UserID != clientID {
		return engine.ForbiddenError{Reason: "operation reserved to the project's client"}
	}
	return nil
}

func requireProjectOwner(ctx context.Context, e engine.Engine, projectID int64) error {
	if _, ok := principalFromContext(ctx); !ok {
		return nil
	}
	p, err := e.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	return requireClient(ctx, p.ClientID)
}

// requireProjectOrVendor lets the owning client or any authenticated vendor read a project.
func requireProjectOrVendor(ctx context.Context, e engine.Engine, projectID int64) error {
	if p, ok := principalFromContext(ctx); ok && p.Role == RoleVendor {
		return nil
	}
	return requireProjectOwner(ctx, e, projectID)
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
