package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/service/intervalcache"
	"github.com/urfave/cli/v3"
)

type Cache struct {
	tolerance time.Duration
	order     string
}

func (x *Cache) Flags() []cli.Flag {
	category := "Cache"
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "cache-tolerance",
			Usage:       "Gap under which adjacent cached ranges are coalesced",
			Category:    category,
			Value:       intervalcache.DefaultTolerance,
			Destination: &x.tolerance,
			Sources:     cli.EnvVars("KIOKU_CACHE_TOLERANCE"),
		},
		&cli.StringFlag{
			Name:        "cache-order",
			Usage:       "Order of returned messages (sent_at, arrival)",
			Category:    category,
			Value:       string(model.OrderSentAt),
			Destination: &x.order,
			Sources:     cli.EnvVars("KIOKU_CACHE_ORDER"),
		},
	}
}

func (x Cache) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("tolerance", x.tolerance.String()),
		slog.String("order", x.order),
	)
}

// Configure creates the interval cache over src. Values from the [cache] section of app
// apply only to flags not set on the command line.
func (x *Cache) Configure(c *cli.Command, app *AppConfig, src interfaces.MessageSource) (*intervalcache.Cache, error) {
	tolerance := x.tolerance
	order := x.order

	if app != nil {
		if app.Cache.Tolerance != "" && !c.IsSet("cache-tolerance") {
			d, err := time.ParseDuration(app.Cache.Tolerance)
			if err != nil {
				return nil, goerr.Wrap(ErrInvalidConfig, "invalid cache tolerance", goerr.V("tolerance", app.Cache.Tolerance))
			}
			tolerance = d
		}
		if app.Cache.Order != "" && !c.IsSet("cache-order") {
			order = app.Cache.Order
		}
	}

	cache, err := intervalcache.New(src,
		intervalcache.WithTolerance(tolerance),
		intervalcache.WithOrderPolicy(model.OrderPolicy(order)),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create cache", goerr.V("tolerance", tolerance), goerr.V("order", order))
	}

	return cache, nil
}
