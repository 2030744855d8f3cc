package verifier

import (
	"boostfix/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("verifier",
	fx.Provide(Provide),
)

func Provide(cfg *config.Config) Verifier {
	tv := NewTwitterVerifier(Options{
		BaseURL:     cfg.Verifier.BaseURL,
		Timeout:     cfg.Verifier.Timeout,
		PageSize:    cfg.Verifier.PageSize,
		RateLimit:   cfg.Verifier.RateLimit,
		Burst:       cfg.Verifier.Burst,
		IdentityTTL: cfg.Verifier.IdentityTTL,
	})

	if cfg.Verifier.Mode == config.VerifierPermissive {
		zap.L().Warn("verifier running in permissive mode, reposts and replies are not checked")
		return &PermissiveVerifier{Likes: tv}
	}
	return tv
}
