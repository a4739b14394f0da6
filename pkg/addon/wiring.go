package addon

import (
	"fmt"

	"github.com/Louieza23/Letterboxio/pkg/cache"
	"github.com/Louieza23/Letterboxio/pkg/catalog"
	"github.com/Louieza23/Letterboxio/pkg/config"
	"github.com/Louieza23/Letterboxio/pkg/letterboxd"
	"github.com/Louieza23/Letterboxio/pkg/logging"
	"github.com/Louieza23/Letterboxio/pkg/queue"
	"github.com/Louieza23/Letterboxio/pkg/resolver"
	"github.com/Louieza23/Letterboxio/pkg/session"
)

// NewFromConfig wires a Service against the live site. The browser is only
// launched on the first mutating action, and only when credentials are set.
func NewFromConfig(cfg *config.Config, logger *logging.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	client, err := letterboxd.NewClient(cfg.Letterboxd.BaseURL,
		letterboxd.WithUserAgent(cfg.Letterboxd.UserAgent),
		letterboxd.WithTimeout(cfg.Letterboxd.RequestTimeout),
		letterboxd.WithLogger(logger.With("letterboxd")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create site client: %w", err)
	}
	endpoints := client.Endpoints()

	identities := cache.New[string]()
	library := catalog.NewLibrary(client, identities, catalog.TTLs{
		Listing:  cfg.Cache.ListingTTL,
		Metadata: cfg.Cache.MetadataTTL,
		Identity: cfg.Cache.IdentityTTL,
	}, logger.With("catalog"))

	var sess *session.Manager
	if cfg.HasCredentials() {
		launcher, err := session.NewPlaywrightLauncher(session.PlaywrightOptions{
			Headless:             cfg.Browser.Headless,
			SkipInstall:          cfg.Browser.SkipInstall,
			UserAgent:            cfg.Letterboxd.UserAgent,
			BlockedResourceTypes: cfg.Browser.BlockedResourceTypes,
			BlockedURLPatterns:   cfg.Browser.BlockedURLPatterns,
			DefaultTimeout:       cfg.Browser.NavigationTimeout,
		}, logger.With("playwright"))
		if err != nil {
			return nil, fmt.Errorf("failed to configure browser: %w", err)
		}
		sess = session.NewManager(launcher,
			session.Credentials{Username: cfg.Letterboxd.Username, Password: cfg.Letterboxd.Password},
			endpoints,
			session.Timeouts{
				Navigation:  cfg.Browser.NavigationTimeout,
				LoginForm:   cfg.Browser.LoginFormTimeout,
				LoginSubmit: cfg.Browser.LoginSubmitTimeout,
				Action:      cfg.Browser.ActionTimeout,
			},
			logger.With("session"),
		)
	} else {
		logger.Infof("no credentials configured, mutating actions are disabled")
	}

	resolverCfg := resolver.Config{
		User:        cfg.Letterboxd.User,
		Catalog:     library,
		Identities:  identities,
		Redirect:    client,
		Endpoints:   endpoints,
		Timeout:     cfg.Browser.NavigationTimeout,
		IdentityTTL: cfg.Cache.IdentityTTL,
		Logger:      logger.With("resolver"),
	}
	deps := Deps{
		User:      cfg.Letterboxd.User,
		Endpoints: endpoints,
		Library:   library,
		Queue:     queue.New(logger.With("queue")),
		Dedup:     queue.NewDeduplicator(cfg.Queue.DedupWindow),
		Logger:    logger.With("addon"),
	}
	// Leave the interfaces nil rather than holding a typed nil pointer.
	if sess != nil {
		resolverCfg.Browser = sess
		deps.Session = sess
	}
	deps.Resolver = resolver.New(resolverCfg)

	return New(deps), nil
}
