package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service settings read from config.json
type Config struct {
	DataDir        string `json:"data_dir"`        // directory holding the source tables
	TrafficFile    string `json:"traffic_file"`    // passenger statistics by origin airport (.csv or .xlsx)
	LocationFile   string `json:"location_file"`   // airport coordinates (.csv)
	SourceEncoding string `json:"source_encoding"` // utf-8, latin1, windows-1252 or gbk
	SheetName      string `json:"sheet_name"`      // sheet to read when the traffic table is a workbook
	LogName        string `json:"log_name"`
	LogLevel       string `json:"log_level"`    // DEBUG, INFO (default), WARNING, ERROR
	LogMaxSize     string `json:"log_max_size"` // e.g. "10 * 1024 * 1024"

	Server struct {
		Addr string `json:"addr"`
	} `json:"server"`

	Reload struct {
		Watch         bool     `json:"watch"`          // reload when a source file changes
		CheckInterval Duration `json:"check_interval"` // log rotation check interval
	} `json:"reload"`

	Report struct {
		Dir      string   `json:"dir"`      // where scheduled workbooks are written
		Interval Duration `json:"interval"` // zero disables the scheduled report
	} `json:"report"`

	SendEmail struct {
		Server   string   `json:"server"` // host:port, port 465 assumed when omitted
		Username string   `json:"username"`
		Password string   `json:"password"`
		To       []string `json:"to"`
		Subject  string   `json:"subject"`
	} `json:"send_email"`
}

// DataConfig holds the table layout read from dataconfig.json
type DataConfig struct {
	TrafficColumns  map[string]string `json:"traffic_columns"`  // logical name -> header in the traffic table
	LocationColumns map[string]string `json:"location_columns"` // logical name -> header in the location table
	TopNChoices     []int             `json:"top_n_choices"`
	DefaultTopN     int               `json:"default_top_n"`
}

// Logical column names. The defaults map them to the exact headers of the
// published tables.
const (
	ColYear          = "year"
	ColCode          = "code"
	ColName          = "name"
	ColCity          = "city"
	ColTotal         = "total"
	ColDomestic      = "domestic"
	ColOutbound      = "outbound"
	ColInbound       = "inbound"
	ColLocationCode  = "code"
	ColLatitude      = "latitude"
	ColLongitude     = "longitude"
	defaultLogName   = "app.log"
	defaultAddr      = ":8050"
	defaultTopN      = 5
	defaultLogMax    = "10 * 1024 * 1024"
	defaultLogPeriod = Duration(time.Minute)
)

var (
	DefaultTrafficColumns = map[string]string{
		ColYear:     "Year",
		ColCode:     "Origin Airport Code",
		ColName:     "Origin Airport Name",
		ColCity:     "Origin City Name",
		ColTotal:    "Total Passengers",
		ColDomestic: "Domestic Passengers",
		ColOutbound: "Outbound International Passengers",
		ColInbound:  "Inbound International Passengers",
	}

	DefaultLocationColumns = map[string]string{
		ColLocationCode: "code",
		ColLatitude:     "latitude",
		ColLongitude:    "longitude",
	}

	DefaultTopNChoices = []int{5, 10, 20}
)

var ErrInvalidConfig = errors.New("invalid config")

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error
	mu                 sync.RWMutex
)

// LoadConfig reads config.json and dataconfig.json from jsonFolder once per
// process. Later calls return the first result.
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = Load(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, loadErr
}

// Load reads both files without caching, applies .env and environment
// overrides and fills defaults.
func Load(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	cfg, dcfg, err := loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		return nil, nil, err
	}

	// a missing .env is fine, variables may come from the environment
	_ = godotenv.Load(filepath.Join(jsonFolder, ".env"))
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	dcfg.fillDefaults()
	return cfg, dcfg, nil
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read config file: %w", err)
	}

	// dataconfig.json is optional, the published column names are the default
	var dataConfigData []byte
	if _, statErr := os.Stat(dataConfigFile); statErr == nil {
		dataConfigData, err = readFile(dataConfigFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read data config file: %w", err)
		}
	} else {
		dataConfigData = []byte("{}")
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	return waitForResults(cfgChan, dcfgChan, errChan)
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("parse Config: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("parse DataConfig: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg  *Config
		dcfg *DataConfig
		errs []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("config only partially loaded")
	}

	return cfg, dcfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"FLIGHT_DATA_DIR":      &c.DataDir,
		"FLIGHT_TRAFFIC_FILE":  &c.TrafficFile,
		"FLIGHT_LOCATION_FILE": &c.LocationFile,
		"FLIGHT_SERVER_ADDR":   &c.Server.Addr,
		"FLIGHT_LOG_NAME":      &c.LogName,
		"FLIGHT_MAIL_PASSWORD": &c.SendEmail.Password,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks required settings and fills defaults for the rest.
func (c *Config) Validate() error {
	if c.TrafficFile == "" {
		return fmt.Errorf("%w: traffic_file is required", ErrInvalidConfig)
	}
	if c.LocationFile == "" {
		return fmt.Errorf("%w: location_file is required", ErrInvalidConfig)
	}
	if _, ok := NormalizeEncoding(c.SourceEncoding); !ok {
		return fmt.Errorf("%w: unsupported source_encoding %q", ErrInvalidConfig, c.SourceEncoding)
	}
	if c.LogName == "" {
		c.LogName = defaultLogName
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = defaultLogMax
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Reload.CheckInterval <= 0 {
		c.Reload.CheckInterval = defaultLogPeriod
	}
	if c.Report.Dir == "" {
		c.Report.Dir = c.DataDir
	}
	return nil
}

// NormalizeEncoding maps an encoding name or alias to one of utf-8, latin1,
// windows-1252 or gbk. Empty means utf-8.
func NormalizeEncoding(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return "utf-8", true
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return "latin1", true
	case "windows-1252", "cp1252":
		return "windows-1252", true
	case "gbk", "cp936":
		return "gbk", true
	}
	return "", false
}

// TrafficPath joins the data directory and the traffic file name.
func (c *Config) TrafficPath() string {
	return c.resolve(c.TrafficFile)
}

// LocationPath joins the data directory and the location file name.
func (c *Config) LocationPath() string {
	return c.resolve(c.LocationFile)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) || c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// MailEnabled reports whether scheduled reports should also be mailed.
func (c *Config) MailEnabled() bool {
	return c.SendEmail.Server != "" && len(c.SendEmail.To) > 0
}

func (dc *DataConfig) fillDefaults() {
	mu.Lock()
	defer mu.Unlock()

	if dc.TrafficColumns == nil {
		dc.TrafficColumns = map[string]string{}
	}
	for k, v := range DefaultTrafficColumns {
		if dc.TrafficColumns[k] == "" {
			dc.TrafficColumns[k] = v
		}
	}
	if dc.LocationColumns == nil {
		dc.LocationColumns = map[string]string{}
	}
	for k, v := range DefaultLocationColumns {
		if dc.LocationColumns[k] == "" {
			dc.LocationColumns[k] = v
		}
	}
	if len(dc.TopNChoices) == 0 {
		dc.TopNChoices = append([]int(nil), DefaultTopNChoices...)
	}
	if dc.DefaultTopN <= 0 {
		dc.DefaultTopN = defaultTopN
	}
}

// DefaultDataConfig returns the layout of the published tables.
func DefaultDataConfig() *DataConfig {
	dc := &DataConfig{}
	dc.fillDefaults()
	return dc
}

func (dc *DataConfig) GetTrafficColumn(name string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.TrafficColumns[name]
}

func (dc *DataConfig) SetTrafficColumn(name, header string) {
	mu.Lock()
	defer mu.Unlock()
	dc.TrafficColumns[name] = header
}

func (dc *DataConfig) GetLocationColumn(name string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.LocationColumns[name]
}

// Duration wraps time.Duration so it can be written as "5m" in JSON
type Duration time.Duration

// UnmarshalJSON parses a Duration from a JSON string
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON writes a Duration as a JSON string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
