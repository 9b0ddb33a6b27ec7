// Package fakeshortener is an in-memory implementation of the shortener
// REST contract the client consumes. It exists for two reasons: the
// integration tests need a real HTTP peer with real 401 semantics, and
// the `demo` command needs a backend to point the client at without any
// external service. It is a contract double, not a product: storage is
// process-local maps and analytics are synthesized from the clicks the
// process has seen.
package fakeshortener

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/linkboard/linkboard/internal/logger"
	"github.com/linkboard/linkboard/internal/models"
)

// Claims are the JWT claims issued by the fake server.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

type account struct {
	id           string
	email        string
	passwordHash []byte
	plan         string
}

type click struct {
	at         time.Time
	ipAddress  string
	deviceType string
}

type linkRecord struct {
	models.Link
	ownerID  string
	password string
	clicks   []click
}

// Server holds the fake API state. All exported methods and the handler
// are safe for concurrent use.
type Server struct {
	mu     sync.Mutex
	users  map[string]*account    // keyed by email
	links  map[string]*linkRecord // keyed by link ID
	byCode map[string]string      // short code -> link ID

	signingSecret []byte
	tokenTTL      time.Duration
	now           func() time.Time
}

// Option customises the fake server.
type Option func(*Server)

// WithTokenTTL sets the lifetime of issued tokens. Tests use a negative
// TTL to mint already-expired tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

// WithClock overrides the server's notion of now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New constructs an empty fake shortener.
func New(opts ...Option) *Server {
	theServer := &Server{
		users:         map[string]*account{},
		links:         map[string]*linkRecord{},
		byCode:        map[string]string{},
		signingSecret: []byte("fake-shortener-secret"),
		tokenTTL:      time.Hour,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(theServer)
	}

	return theServer
}

// Handler returns the routing tree: the API under /api, the redirect
// endpoint at the root.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", s.postRegister)
		api.Post("/auth/login", s.postLogin)

		api.Group(func(protected chi.Router) {
			protected.Use(s.authenticateUser)
			protected.Get("/links", s.getLinks)
			protected.Post("/links", s.postLink)
			protected.Put("/links/{linkID}", s.putLink)
			protected.Delete("/links/{linkID}", s.deleteLink)
			protected.Get("/analytics/{linkID}", s.getAnalytics)
		})
	})

	router.Get("/{shortCode}", s.getRedirect)

	return router
}

func respondJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error encoding the response payload:", err)
	}
}

func respondMessage(response http.ResponseWriter, status int, message string) {
	respondJSON(response, status, models.APIErrorBody{Message: message})
}

func (s *Server) issueToken(userID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		UserID: userID,
	})

	return token.SignedString(s.signingSecret)
}

func (s *Server) userIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.signingSecret, nil
		},
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return "", errors.New("invalid token")
	}

	return claims.UserID, nil
}

type contextKey string

const userIDKey contextKey = "userID"

// authenticateUser requires a valid bearer token and stores the user ID
// in the request context. Everything wrong with the credential maps to
// a single 401.
func (s *Server) authenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		header := request.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			respondMessage(response, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		userID, err := s.userIDFromToken(tokenString)
		if err != nil {
			respondMessage(response, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		requestWithCtx := request.WithContext(
			contextWithUserID(request.Context(), userID),
		)
		h.ServeHTTP(response, requestWithCtx)
	}

	return http.HandlerFunc(middleware)
}
