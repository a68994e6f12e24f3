package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	platformauth "github.com/zenGate-Global/retailops/platform/go/auth"
	"github.com/zenGate-Global/retailops/platform/go/gcp"
)

type authWiring struct {
	middleware func(http.Handler) http.Handler
	// directory resolves display names for approval listings; nil under dev auth.
	directory service.UserDirectory
}

// buildAuth picks the token verifier for cfg.AuthProvider. Firebase also backs
// the user directory.
func buildAuth(ctx context.Context, cfg config, logger *zap.Logger) authWiring {
	switch cfg.AuthProvider {
	case "firebase":
		_, fbAuth, err := gcp.InitFirebaseAuth(ctx, cfg.FirebaseCredentials)
		if err != nil {
			logger.Fatal("init firebase auth", zap.Error(err))
		}
		return authWiring{
			middleware: platformauth.JWT(platformauth.FirebaseTokenVerifier(fbAuth), platformauth.DefaultCredentialExtractor),
			directory:  gcp.NewUserDirectory(fbAuth),
		}
	case "dev":
		logger.Warn("using dev auth middleware; do not use in production")
		return authWiring{
			middleware: platformauth.JWT(platformauth.UnsignedTokenVerifier(), platformauth.DefaultCredentialExtractor),
		}
	default:
		logger.Fatal("unsupported auth provider", zap.String("provider", cfg.AuthProvider))
		return authWiring{}
	}
}
