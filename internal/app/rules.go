package app

import (
	"context"
	"time"

	"github.com/garyellow/scamguard-linebot-go/internal/config"
	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
	"github.com/garyellow/scamguard-linebot-go/internal/r2client"
)

// newRuleReloader picks the rule dictionary source. R2 takes precedence
// over a local file; nil means the built-in rules are used as is.
func newRuleReloader(ctx context.Context, cfg *config.Config, d *detection.Detector, m *metrics.Metrics, log *logger.Logger) (*detection.Reloader, error) {
	var src detection.RuleSource
	switch {
	case cfg.RulesR2Key != "":
		client, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretAccessKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			return nil, err
		}
		src = &detection.ObjectSource{Store: client, Key: cfg.RulesR2Key}
		log.WithField("key", cfg.RulesR2Key).Info("Rule dictionary source: R2")
	case cfg.RulesFile != "":
		src = &detection.FileSource{Path: cfg.RulesFile}
		log.WithField("path", cfg.RulesFile).Info("Rule dictionary source: file")
	default:
		return nil, nil
	}
	return detection.NewReloader(d, src, m, log), nil
}

// refreshRules reloads the rule dictionary on every tick until ctx is done.
// The reloader logs failures and keeps the current rules.
func (a *Application) refreshRules(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	log := a.logger.WithModule("rules")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reloadCtx, cancel := context.WithTimeout(ctx, config.RuleReloadTimeout)
			changed, err := a.reloader.Reload(reloadCtx)
			cancel()
			if err != nil {
				continue
			}
			log.WithField("changed", changed).Debug("Rule dictionary refresh checked")
		}
	}
}
