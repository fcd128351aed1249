package glowmarkt

import (
	"fmt"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/glowmeter/pkg/types"
)

// Configured sets up flags for the Glowmarkt client and returns the instance.
// The client is usable once lflag.Configure has run.
func Configured() *Client {
	c := &Client{}
	apiURL := lflag.String("glowmarkt-api-url", DefaultBaseURL, "URL for the Glowmarkt API")
	appID := lflag.String("glowmarkt-application-id", DefaultApplicationID, "Application ID sent with every Glowmarkt request")
	username := lflag.RequiredString("glowmarkt-username", "Glowmarkt (Bright app) account username")
	password := lflag.RequiredString("glowmarkt-password", "Glowmarkt (Bright app) account password")
	tz := lflag.String("glowmarkt-timezone", "Europe/London", "Timezone the meter's readings are reported in")
	timeout := lflag.Duration("glowmarkt-timeout", 30*time.Second, "Timeout for each Glowmarkt request")
	interval := lflag.Duration("glowmarkt-request-interval", defaultRequestInterval, "Minimum average spacing between Glowmarkt requests (negative disables)")

	lflag.Do(func() {
		loc, err := time.LoadLocation(*tz)
		if err != nil {
			panic(fmt.Errorf("failed to load glowmarkt timezone (%s): %w", *tz, err))
		}
		opts := Options{
			BaseURL:         *apiURL,
			ApplicationID:   *appID,
			Location:        loc,
			Timeout:         *timeout,
			RequestInterval: *interval,
		}
		if err := opts.Validate(); err != nil {
			panic(err)
		}
		c.apply(opts)
		c.creds = types.Credentials{
			Username: *username,
			Password: *password,
		}
	})

	return c
}

// Validate ensures the options are usable.
func (o Options) Validate() error {
	if o.BaseURL == "" {
		return fmt.Errorf("glowmarkt-api-url is required")
	}
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse glowmarkt url (%s): %w", o.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("glowmarkt url must be http or https: %s", o.BaseURL)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("glowmarkt timeout cannot be negative")
	}
	return nil
}
