package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"parley/parley/utils/apperr"
	"parley/parley/utils/logging"
)

// FirebaseVerifier checks Firebase ID tokens against Google's published signing keys.
type FirebaseVerifier struct {
	projectID string
	keyFunc   jwt.Keyfunc
	jwks      *keyfunc.JWKS
}

// NewFirebaseVerifier fetches the key set once. ctx only carries values: the background
// refresh keeps running until Close, whatever deadline ctx has.
func NewFirebaseVerifier(ctx context.Context, projectID, jwksURL string) (*FirebaseVerifier, error) {
	options := keyfunc.Options{
		Ctx:               context.WithoutCancel(ctx),
		RefreshInterval:   time.Hour,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logging.ErrorLogger.Error("firebase jwks refresh error", zap.Error(err))
		},
	}
	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, fmt.Errorf("fetch firebase jwks: %w", err)
	}
	return &FirebaseVerifier{projectID: projectID, keyFunc: jwks.Keyfunc, jwks: jwks}, nil
}

// VerifySubject returns nil only if idToken is a valid Firebase ID token issued for uid.
func (v *FirebaseVerifier) VerifySubject(ctx context.Context, idToken, uid string) error {
	defer logging.LogDuration(ctx, "firebase_verify")()

	if strings.TrimSpace(idToken) == "" {
		return apperr.New(apperr.InvalidToken, "Identity token is required")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(idToken, &claims, v.keyFunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return apperr.Wrap(apperr.InvalidToken, "Invalid identity token", err)
	}
	if claims.Subject != uid {
		return apperr.New(apperr.InvalidToken, "Identity token does not match user")
	}
	return nil
}

func (v *FirebaseVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
