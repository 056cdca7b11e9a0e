package bling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// maxResponseSize is the maximum allowed response size from the Bling API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Config holds Bling API client settings
type Config struct {
	// APIBaseURL is the Bling REST API root, e.g. https://api.bling.com.br/Api/v3
	APIBaseURL string
	// RequestTimeout bounds every outbound call
	RequestTimeout time.Duration
	// MaxPageSize caps the page size requested from Bling
	MaxPageSize int
}

// Validate checks the client configuration
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("bling: api base url is required")
	}
	if _, err := url.Parse(c.APIBaseURL); err != nil {
		return fmt.Errorf("bling: invalid api base url: %w", err)
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	return nil
}

// Client implements sync.Gateway against the Bling v3 REST API.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Bling API client
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// resourcePath maps a job type to its Bling v3 resource
func resourcePath(jobType syncdomain.JobType) string {
	switch jobType {
	case syncdomain.JobTypeProducts:
		return "/produtos"
	case syncdomain.JobTypeOrders:
		return "/pedidos/vendas"
	case syncdomain.JobTypeContacts:
		return "/contatos"
	case syncdomain.JobTypeInventory:
		return "/estoques/saldos"
	default:
		return "/produtos"
	}
}

// blingListResponse is the common envelope of Bling list endpoints
type blingListResponse struct {
	Data []blingEntity `json:"data"`
}

// blingEntity covers the fields shared by the entity families we sync.
// Bling omits pricing on unpriced families; those fields stay zero.
type blingEntity struct {
	ID            json.Number `json:"id"`
	Nome          string      `json:"nome"`
	Codigo        string      `json:"codigo"`
	Preco         *float64    `json:"preco"`
	PrecoCusto    *float64    `json:"precoCusto"`
	DataAlteracao string      `json:"dataAlteracao"`
}

// FetchPage pulls one batch of entities of the given family.
func (c *Client) FetchPage(ctx context.Context, accessToken string, jobType syncdomain.JobType, page, pageSize int) (*syncdomain.Page, error) {
	if pageSize > c.config.MaxPageSize {
		pageSize = c.config.MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	endpoint := fmt.Sprintf("%s%s?pagina=%d&limite=%d",
		c.config.APIBaseURL, resourcePath(jobType), page, pageSize)

	body, err := c.do(ctx, http.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var list blingListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", syncdomain.ErrERPInvalidResponse, err)
	}

	items := make([]syncdomain.RemoteEntity, 0, len(list.Data))
	var malformed []syncdomain.PushRejection
	for _, raw := range list.Data {
		entity, err := mapEntity(raw)
		if err != nil {
			// A malformed entity does not fail the whole fetch; it is
			// surfaced on the page so the orchestrator counts and logs it.
			c.logger.Warn("Malformed Bling entity",
				zap.String("remote_id", raw.ID.String()),
				zap.Error(err),
			)
			malformed = append(malformed, syncdomain.PushRejection{
				RemoteID: raw.ID.String(),
				SKU:      raw.Codigo,
				Reason:   err.Error(),
			})
			continue
		}
		items = append(items, entity)
	}

	// Bling does not return a total count; a full page implies more data.
	hasMore := len(list.Data) == pageSize
	return &syncdomain.Page{
		Items:     items,
		Malformed: malformed,
		HasMore:   hasMore,
		NextPage:  page + 1,
	}, nil
}

// mapEntity converts a Bling payload into the neutral remote shape
func mapEntity(raw blingEntity) (syncdomain.RemoteEntity, error) {
	if raw.ID.String() == "" {
		return syncdomain.RemoteEntity{}, syncdomain.ErrEntityInvalid
	}
	entity := syncdomain.RemoteEntity{
		RemoteID: raw.ID.String(),
		SKU:      raw.Codigo,
		Name:     raw.Nome,
	}
	if raw.Preco != nil {
		price := decimal.NewFromFloat(*raw.Preco)
		if price.IsNegative() {
			return syncdomain.RemoteEntity{}, fmt.Errorf("%w: negative price", syncdomain.ErrEntityInvalid)
		}
		entity.Price = price
		entity.Priced = true
	}
	if raw.PrecoCusto != nil {
		cost := decimal.NewFromFloat(*raw.PrecoCusto)
		entity.CostPrice = &cost
	}
	if raw.DataAlteracao != "" {
		if ts, err := time.Parse("2006-01-02 15:04:05", raw.DataAlteracao); err == nil {
			entity.UpdatedAt = ts
		}
	}
	return entity, nil
}

// pushPayload is the batch body sent to Bling on export
type pushPayload struct {
	Itens []pushItem `json:"itens"`
}

type pushItem struct {
	ID     string  `json:"id,omitempty"`
	Nome   string  `json:"nome"`
	Codigo string  `json:"codigo"`
	Preco  float64 `json:"preco"`
}

// pushResponse is Bling's per-item result envelope
type pushResponse struct {
	Data []struct {
		ID     json.Number `json:"id"`
		Codigo string      `json:"codigo"`
		Erro   string      `json:"erro"`
	} `json:"data"`
}

// Push sends local entities of the given family to Bling.
func (c *Client) Push(ctx context.Context, accessToken string, jobType syncdomain.JobType, items []syncdomain.LocalEntity) (*syncdomain.PushResult, error) {
	payload := pushPayload{Itens: make([]pushItem, 0, len(items))}
	for _, item := range items {
		price, _ := item.Price.Float64()
		payload.Itens = append(payload.Itens, pushItem{
			ID:     item.RemoteID,
			Nome:   item.Name,
			Codigo: item.SKU,
			Preco:  price,
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := c.config.APIBaseURL + resourcePath(jobType)
	body, err := c.do(ctx, http.MethodPost, endpoint, accessToken, raw)
	if err != nil {
		return nil, err
	}

	var resp pushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", syncdomain.ErrERPInvalidResponse, err)
	}

	result := &syncdomain.PushResult{}
	for _, item := range resp.Data {
		if item.Erro != "" {
			result.Rejected = append(result.Rejected, syncdomain.PushRejection{
				RemoteID: item.ID.String(),
				SKU:      item.Codigo,
				Reason:   item.Erro,
			})
			continue
		}
		result.Accepted++
	}
	// Bling acknowledges batches it accepted wholesale without echoing items
	if len(resp.Data) == 0 {
		result.Accepted = len(items)
	}
	return result, nil
}

// do executes one HTTP call and maps transport/status failures onto the
// gateway error taxonomy.
func (c *Client) do(ctx context.Context, method, endpoint, accessToken string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and transport failures are transient
		return nil, fmt.Errorf("%w: %v", syncdomain.ErrERPUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", syncdomain.ErrERPUnavailable, err)
	}

	c.logger.Debug("Bling API call",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: retry-after %s", syncdomain.ErrERPRateLimited, resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", syncdomain.ErrERPUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", syncdomain.ErrERPInvalidResponse, resp.StatusCode, truncate(payload, 256))
	}
	return payload, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// Ensure Client implements sync.Gateway
var _ syncdomain.Gateway = (*Client)(nil)
