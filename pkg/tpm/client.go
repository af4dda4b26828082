package tpm

// Client groups the resource clients that share one Transport.
type Client struct {
	transport *Transport
	passwords *PasswordClient
	projects  *ProjectClient
}

// New builds a client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	t, err := NewTransport(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithTransport(t, cfg.Policy), nil
}

// NewWithTransport builds a client on an existing transport.
func NewWithTransport(t *Transport, policy Policy) *Client {
	projects := &ProjectClient{t: t, policy: policy}
	return &Client{
		transport: t,
		projects:  projects,
		passwords: &PasswordClient{t: t, projects: projects, policy: policy},
	}
}

// Passwords returns the password resource client.
func (c *Client) Passwords() *PasswordClient { return c.passwords }

// Projects returns the project resource client.
func (c *Client) Projects() *ProjectClient { return c.projects }

// Transport returns the underlying transport.
func (c *Client) Transport() *Transport { return c.transport }

func coalesce(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
