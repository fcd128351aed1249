package glowmarkt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/raterudder/glowmeter/pkg/common"
	"github.com/raterudder/glowmeter/pkg/log"
	"github.com/raterudder/glowmeter/pkg/types"
)

const (
	DefaultBaseURL       = "https://api.glowmarkt.com/api/v0-1"
	DefaultApplicationID = "b0f1b774-a586-4f72-9edd-27ead8aa7a8d"

	// readings take local wall-clock timestamps without an offset
	readingTimeLayout = "2006-01-02T15:04:05"

	defaultRequestInterval = 200 * time.Millisecond
	requestBurst           = 10
)

// Options configures a Client.
type Options struct {
	BaseURL       string
	ApplicationID string
	// Location is used to format reading windows and to convert returned
	// timestamps. Defaults to time.Local.
	Location *time.Location
	Timeout  time.Duration
	// RequestInterval is the minimum average spacing between requests.
	// Zero uses the default, a negative value disables limiting.
	RequestInterval time.Duration
}

// Client talks to the Glowmarkt API on behalf of a single account.
type Client struct {
	baseURL  string
	location *time.Location
	client   *http.Client
	limiter  *rate.Limiter
	requests *prometheus.CounterVec
	creds    types.Credentials

	mu    sync.Mutex
	token string

	entitiesMu sync.Mutex
	entities   []types.VirtualEntity
}

// New returns a client for the given options. It must be authenticated before
// any data call.
func New(opts Options) *Client {
	c := &Client{}
	c.apply(opts)
	return c
}

func (c *Client) apply(opts Options) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ApplicationID == "" {
		opts.ApplicationID = DefaultApplicationID
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestInterval == 0 {
		opts.RequestInterval = defaultRequestInterval
	}

	c.baseURL = opts.BaseURL
	c.location = opts.Location
	c.client = common.HTTPClient(opts.Timeout, http.Header{
		"Content-Type":  []string{"application/json"},
		"applicationId": []string{opts.ApplicationID},
	})
	if opts.RequestInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(opts.RequestInterval), requestBurst)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	c.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glowmeter_api_requests_total",
		Help: "Requests made to the Glowmarkt API by call and HTTP status code",
	}, []string{"call", "code"})
}

// Location returns the location reading windows are expressed in.
func (c *Client) Location() *time.Location {
	return c.location
}

// Connect authenticates with the credentials the client was configured with.
func (c *Client) Connect(ctx context.Context) error {
	return c.Authenticate(ctx, c.creds)
}

type authResponse struct {
	Token string `json:"token"`
	Valid bool   `json:"valid"`
}

// Authenticate exchanges the credentials for a token that is sent with every
// following call. A new session starts with an empty virtual entity cache.
func (c *Client) Authenticate(ctx context.Context, creds types.Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("missing username or password: %w", ErrAuthentication)
	}

	body, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, []string{"auth"}, nil, body)
	if err != nil {
		return err
	}

	var res authResponse
	if err := c.doRequest(req, "authenticate", "", &res); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "glowmarkt login failed", slog.Any("error", err))
		return err
	}
	if res.Token == "" {
		return fmt.Errorf("no token in response: %w", ErrAuthentication)
	}
	log.Ctx(ctx).DebugContext(ctx, "glowmarkt login success", slog.String("username", creds.Username))

	c.mu.Lock()
	c.token = res.Token
	c.mu.Unlock()
	c.resetEntities()
	return nil
}

// Close ends the session. The client must be authenticated again before it
// can be reused.
func (c *Client) Close() error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.resetEntities()
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) resetEntities() {
	c.entitiesMu.Lock()
	c.entities = nil
	c.entitiesMu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// ListVirtualEntities returns the account's virtual entities. The result is
// cached for the lifetime of the session.
func (c *Client) ListVirtualEntities(ctx context.Context) ([]types.VirtualEntity, error) {
	c.entitiesMu.Lock()
	defer c.entitiesMu.Unlock()

	if c.entities != nil {
		return cloneEntities(c.entities), nil
	}

	var res []types.VirtualEntity
	if err := c.get(ctx, "listVirtualEntities", []string{"virtualentity"}, nil, &res); err != nil {
		return nil, err
	}
	if res == nil {
		res = []types.VirtualEntity{}
	}
	log.Ctx(ctx).DebugContext(ctx, "fetched glowmarkt virtual entities", slog.Int("count", len(res)))
	c.entities = res
	return cloneEntities(res), nil
}

// cloneEntities copies the cached entities so callers can't modify the cache.
func cloneEntities(ves []types.VirtualEntity) []types.VirtualEntity {
	out := slices.Clone(ves)
	for i := range out {
		out[i].Resources = slices.Clone(out[i].Resources)
	}
	return out
}

type resourcesResponse struct {
	Resources []types.Resource `json:"resources"`
}

// ListResources returns the resources of the given virtual entity.
func (c *Client) ListResources(ctx context.Context, virtualEntityID string) ([]types.Resource, error) {
	var res resourcesResponse
	if err := c.get(ctx, "listResources", []string{"virtualentity", virtualEntityID, "resources"}, nil, &res); err != nil {
		return nil, err
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched glowmarkt resources",
		slog.String("virtualEntityID", virtualEntityID),
		slog.Int("count", len(res.Resources)),
	)
	return res.Resources, nil
}

// Catchup asks the API to pull the latest data from the meter. The pull
// happens asynchronously upstream and is not waited for.
func (c *Client) Catchup(ctx context.Context, resourceID string) error {
	return c.get(ctx, "catchup", []string{"resource", resourceID, "catchup"}, nil, nil)
}

// readingsResponse points are [epochSeconds, value]. The value is null for a
// bucket that has no data yet.
type readingsResponse struct {
	Data [][]*float64 `json:"data"`
}

// GetReading returns the summed readings of a resource between from and to at
// the given period.
func (c *Client) GetReading(ctx context.Context, resourceID string, from, to time.Time, period types.Period) (types.Reading, error) {
	if err := period.Validate(); err != nil {
		return types.Reading{}, err
	}

	params := url.Values{}
	params.Set("from", from.In(c.location).Format(readingTimeLayout))
	params.Set("to", to.In(c.location).Format(readingTimeLayout))
	params.Set("period", string(period))
	params.Set("function", "sum")

	var res readingsResponse
	if err := c.get(ctx, "getReading", []string{"resource", resourceID, "readings"}, params, &res); err != nil {
		return types.Reading{}, err
	}

	reading := types.Reading{Points: make([]types.ReadingPoint, 0, len(res.Data))}
	for i, p := range res.Data {
		if len(p) < 2 || p[0] == nil {
			return types.Reading{}, fmt.Errorf("malformed reading point %d: %w", i, ErrDataFetch)
		}
		if p[1] == nil {
			continue
		}
		reading.Points = append(reading.Points, types.ReadingPoint{
			Timestamp: time.Unix(int64(*p[0]), 0).In(c.location),
			Value:     *p[1],
		})
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched glowmarkt reading",
		slog.String("resourceID", resourceID),
		slog.String("from", params.Get("from")),
		slog.String("to", params.Get("to")),
		slog.String("period", string(period)),
		slog.Int("points", len(reading.Points)),
	)
	return reading, nil
}

type tariffResponse struct {
	Data []struct {
		CurrentRates *struct {
			Rate           *float64 `json:"rate"`
			StandingCharge *float64 `json:"standingCharge"`
		} `json:"currentRates"`
	} `json:"data"`
}

// GetTariff returns the current rates of the first tariff on the resource.
func (c *Client) GetTariff(ctx context.Context, resourceID string) (types.TariffRates, error) {
	var res tariffResponse
	if err := c.get(ctx, "getTariff", []string{"resource", resourceID, "tariff"}, nil, &res); err != nil {
		return types.TariffRates{}, err
	}
	if len(res.Data) == 0 {
		return types.TariffRates{}, noDataError("getTariff")
	}
	current := res.Data[0].CurrentRates
	if current == nil || current.Rate == nil || current.StandingCharge == nil {
		return types.TariffRates{}, noDataError("getTariff")
	}
	rates := types.TariffRates{
		Rate:           *current.Rate,
		StandingCharge: *current.StandingCharge,
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched glowmarkt tariff",
		slog.String("resourceID", resourceID),
		slog.Float64("rate", rates.Rate),
		slog.Float64("standingCharge", rates.StandingCharge),
	)
	return rates, nil
}

func (c *Client) get(ctx context.Context, call string, path []string, params url.Values, dest any) error {
	token := c.currentToken()
	if token == "" {
		return fmt.Errorf("%s called before authenticating: %w", call, ErrAuthentication)
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	return c.doRequest(req, call, token, dest)
}

func (c *Client) newRequest(ctx context.Context, method string, path []string, params url.Values, body []byte) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	u = u.JoinPath(path...)
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var req *http.Request
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return req, nil
}

func (c *Client) doRequest(req *http.Request, call, token string, dest any) error {
	ctx := req.Context()
	isAuth := token == ""

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", call, err)
	}
	if !isAuth {
		req.Header.Set("token", token)
	}

	log.Ctx(ctx).DebugContext(ctx, "glowmarkt request", slog.String("call", call), slog.String("url", req.URL.String()))
	resp, err := c.client.Do(req)
	if err != nil {
		c.requests.WithLabelValues(call, "error").Inc()
		if isAuth {
			return fmt.Errorf("%s request failed: %w", call, err)
		}
		return fmt.Errorf("%s request failed: %w: %w", call, ErrDataFetch, err)
	}
	defer resp.Body.Close()
	c.requests.WithLabelValues(call, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Call: call, StatusCode: resp.StatusCode, auth: isAuth}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode glowmarkt response", slog.String("call", call), slog.Any("error", err))
		if isAuth {
			return fmt.Errorf("failed to decode %s response: %w", call, err)
		}
		return fmt.Errorf("failed to decode %s response: %w: %w", call, ErrDataFetch, err)
	}
	return nil
}

// Describe implements prometheus.Collector
func (c *Client) Describe(ch chan<- *prometheus.Desc) {
	c.requests.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *Client) Collect(ch chan<- prometheus.Metric) {
	c.requests.Collect(ch)
}
