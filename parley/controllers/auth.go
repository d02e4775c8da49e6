package controllers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"parley/parley/services/auth"
	"parley/parley/utils/apperr"
	"parley/parley/utils/logging"
	"parley/parley/utils/metrics"
	"parley/parley/utils/types"
)

// UpstreamVerifier confirms the sign-in provider's token belongs to uid.
type UpstreamVerifier interface {
	VerifySubject(ctx context.Context, idToken, uid string) error
}

type AuthController struct {
	tokens   *auth.TokenManager
	upstream UpstreamVerifier
}

// NewAuthController builds the verify handler logic. With a nil upstream the
// caller-supplied identity is trusted as given.
func NewAuthController(tokens *auth.TokenManager, upstream UpstreamVerifier) *AuthController {
	return &AuthController{tokens: tokens, upstream: upstream}
}

func (c *AuthController) Verify(ctx context.Context, req types.VerifyRequest) (types.VerifyResponse, error) {
	uid := strings.TrimSpace(req.User.UID)
	if uid == "" {
		return types.VerifyResponse{}, apperr.New(apperr.InvalidInput, "User ID is required")
	}
	if c.upstream != nil {
		if err := c.upstream.VerifySubject(ctx, req.FirebaseToken, uid); err != nil {
			logging.AppLogger.Warn("upstream identity rejected", zap.String("uid", uid), zap.Error(err))
			return types.VerifyResponse{}, err
		}
	}

	id := auth.Identity{UID: uid, Email: req.User.Email, Name: req.User.DisplayName}
	token, err := c.tokens.Issue(id)
	if err != nil {
		return types.VerifyResponse{}, err
	}
	metrics.TokensIssuedTotal.Inc()
	logging.AppLogger.Info("session token issued", zap.String("uid", uid))

	return types.VerifyResponse{
		Token: token,
		User:  types.SessionUser{UID: id.UID, Email: id.Email, Name: id.Name},
	}, nil
}
