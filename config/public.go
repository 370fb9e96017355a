package config

// PublicConfig is the configuration view exposed over the API, without secrets
type PublicConfig struct {
	General struct {
		NodeID      string `json:"nodeId"`
		LogLevel    string `json:"logLevel"`
		Development bool   `json:"development"`
	} `json:"general"`

	Store struct {
		BaseURL        string `json:"baseURL"`
		RequestsPath   string `json:"requestsPath"`
		TimeoutSeconds int    `json:"timeoutSeconds"`
		Embedded       bool   `json:"embedded"`
		Engine         string `json:"engine"`
	} `json:"store"`

	Poller struct {
		IntervalSeconds int `json:"intervalSeconds"`
	} `json:"poller"`

	Credentials struct {
		FromFile bool `json:"fromFile"`
		Watch    bool `json:"watch"`
	} `json:"credentials"`

	Modules []ModuleConfig `json:"modules"`

	HTTP struct {
		Port int  `json:"port"`
		TLS  bool `json:"tls"`
		JWT  struct {
			ExpirationMinutes int `json:"expirationMinutes"`
		} `json:"jwt"`
	} `json:"http"`

	GRPC struct {
		Enabled bool `json:"enabled"`
		Port    int  `json:"port"`
	} `json:"grpc"`

	Cache struct {
		Engine           string `json:"engine"`
		FreshnessMinutes int    `json:"freshnessMinutes"`
	} `json:"cache"`

	Logging struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"logging"`
}

// Public copies the fields of c that are safe to expose
func (c *Config) Public() *PublicConfig {
	p := &PublicConfig{}

	p.General.NodeID = c.General.NodeID
	p.General.LogLevel = c.General.LogLevel
	p.General.Development = c.General.Development

	p.Store.BaseURL = c.Store.BaseURL
	p.Store.RequestsPath = c.Store.RequestsPath
	p.Store.TimeoutSeconds = c.Store.TimeoutSeconds
	p.Store.Embedded = c.Store.Embedded
	p.Store.Engine = c.Store.Engine

	p.Poller.IntervalSeconds = c.Poller.IntervalSeconds

	p.Credentials.FromFile = c.Credentials.FilePath != ""
	p.Credentials.Watch = c.Credentials.Watch

	p.Modules = append([]ModuleConfig(nil), c.Modules...)

	p.HTTP.Port = c.HTTP.Port
	p.HTTP.TLS = c.HTTP.TLS
	p.HTTP.JWT.ExpirationMinutes = c.HTTP.JWT.ExpirationMinutes

	p.GRPC.Enabled = c.GRPC.Enabled
	p.GRPC.Port = c.GRPC.Port

	p.Cache.Engine = c.Cache.Engine
	p.Cache.FreshnessMinutes = c.Cache.FreshnessMinutes

	p.Logging.Level = c.Logging.Level
	p.Logging.Format = c.Logging.Format

	return p
}
