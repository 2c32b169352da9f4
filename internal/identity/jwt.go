package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Static errors for token verification.
var (
	// ErrMissingToken is returned when the request carries no bearer token.
	ErrMissingToken = errors.New("identity: missing bearer token")
	// ErrInvalidToken is returned when the token fails verification.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrJWKSURLRequired is returned when a JWKS verifier is built without a URL.
	ErrJWKSURLRequired = errors.New("identity: JWKS URL is required")
)

var defaultMethods = []string{"RS256", "RS384", "RS512"}

// Verifier resolves Callers from bearer tokens.
type Verifier struct {
	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	issuer  string
	claim   string
	methods []string
	logger  *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithIssuer requires tokens to carry the given iss claim.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

// WithClaim sets the claim holding the identity.
func WithClaim(claim string) VerifierOption {
	return func(v *Verifier) {
		if claim != "" {
			v.claim = claim
		}
	}
}

// WithMethods overrides the accepted signing algorithms.
func WithMethods(methods ...string) VerifierOption {
	return func(v *Verifier) {
		if len(methods) > 0 {
			v.methods = methods
		}
	}
}

// WithLogger sets the logger for verification failures.
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVerifier creates a Verifier that resolves signing keys with kf.
func NewVerifier(kf jwt.Keyfunc, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		keyfunc: kf,
		claim:   DefaultClaim,
		methods: defaultMethods,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewJWKSVerifier creates a Verifier backed by a remote JWKS that is
// refreshed hourly and on unknown key IDs.
func NewJWKSVerifier(ctx context.Context, jwksURL string, opts ...VerifierOption) (*Verifier, error) {
	if jwksURL == "" {
		return nil, ErrJWKSURLRequired
	}

	v := NewVerifier(nil, opts...)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			v.logger.Error("jwks refresh error", slog.String("error", err.Error()))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}

	v.jwks = jwks
	v.keyfunc = jwks.Keyfunc
	return v, nil
}

// Verify parses and validates a token and returns the Caller it names.
func (v *Verifier) Verify(tokenString string) (Caller, error) {
	if tokenString == "" {
		return Anonymous(), ErrMissingToken
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods(v.methods)}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, v.keyfunc, parserOpts...)
	if err != nil {
		return Anonymous(), fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Anonymous(), ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Anonymous(), fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}
	return FromClaims(claims, v.claim), nil
}

// Resolve returns the Caller for r. Requests without a valid token resolve
// to an anonymous Caller; each service decides whether that is acceptable.
func (v *Verifier) Resolve(r *http.Request) Caller {
	tokenString := bearerToken(r.Header.Get("Authorization"))
	if tokenString == "" {
		return Anonymous()
	}

	caller, err := v.Verify(tokenString)
	if err != nil {
		v.logger.Warn("rejected bearer token",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		return Anonymous()
	}
	return caller
}

// Close stops the background JWKS refresh.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
