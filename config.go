package frontier

import (
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config is the configuration instance the rest of frontier should access
// for global configuration values. See the Config fields below for the keys
// enumerated in the spec.
var Config FrontierConfig

// ConfigName is the path (relative or absolute) to the config file that
// should be read by LoadConfigFile.
var ConfigName = "frontier.yaml"

func init() {
	SetDefaultConfig()
}

// FrontierConfig defines the available global configuration parameters for
// frontier. It reads values straight from the config file (frontier.yaml by
// default); see SetDefaultConfig for default values.
type FrontierConfig struct {
	InMemory        bool    `yaml:"in_memory"`
	WorkDir         string  `yaml:"workdir"`
	MinNextPages    int     `yaml:"min_next_pages"`
	MaxNextRequests int     `yaml:"max_next_requests"`
	TimeWindow      float64 `yaml:"time_window"`
	DomainDepth     int     `yaml:"domain_depth"` // 0 means no cutoff

	// BatchMultiplier is the "20*" tuning knob of the OPIC-HITS selection
	// policy (spec §4.2.4, Open Question 2).
	BatchMultiplier int `yaml:"batch_multiplier"`

	// RefreshCeilingFraction bounds how much of each GetNextRequests call
	// the refresh scheduler may consume before new-page candidates fill
	// the rest (spec §4.7).
	RefreshCeilingFraction float64 `yaml:"refresh_ceiling_fraction"`

	// WorkingSetCacheSize bounds the in-process LRU that fronts
	// ChangeDetector's digest lookups and FreqEstimator's crawl-history
	// lookups. 0 disables caching entirely, matching the teacher's
	// AddedDomainsCacheSize/MaxDNSCacheEntries knobs.
	WorkingSetCacheSize int `yaml:"working_set_cache_size"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// SetDefaultConfig resets Config to default values, regardless of what was
// set by any configuration file.
func SetDefaultConfig() {
	Config.InMemory = false
	Config.WorkDir = "frontier-data"
	Config.MinNextPages = 1
	Config.MaxNextRequests = 50
	Config.TimeWindow = 0
	Config.DomainDepth = 0

	Config.BatchMultiplier = 20
	Config.RefreshCeilingFraction = 0.25
	Config.WorkingSetCacheSize = 10000

	Config.Logging.Level = "info"
}

func assertConfigInvariants() error {
	var errs []string

	if Config.MinNextPages < 0 {
		errs = append(errs, "min_next_pages must be >= 0")
	}
	if Config.MaxNextRequests < 1 {
		errs = append(errs, "max_next_requests must be >= 1")
	}
	if Config.BatchMultiplier < 1 {
		errs = append(errs, "batch_multiplier must be >= 1")
	}
	if Config.RefreshCeilingFraction < 0.0 || Config.RefreshCeilingFraction > 1.0 {
		errs = append(errs, "refresh_ceiling_fraction must be between 0 and 1")
	}
	if Config.TimeWindow < 0 {
		errs = append(errs, "time_window must be >= 0")
	}
	if Config.WorkingSetCacheSize < 0 {
		errs = append(errs, "working_set_cache_size must be >= 0")
	}
	if !Config.InMemory && strings.TrimSpace(Config.WorkDir) == "" {
		errs = append(errs, "workdir must be set when in_memory is false")
	}

	if _, err := logrus.ParseLevel(Config.Logging.Level); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level invalid: %v", err))
	}

	if len(errs) > 0 {
		em := ""
		for _, e := range errs {
			logrus.Errorf("config error: %v", e)
			em += "\t" + e + "\n"
		}
		return fmt.Errorf("config error:\n%v", em)
	}

	return nil
}

// LoadConfigFile sets a new path to find the frontier yaml config file and
// forces a reload of the config, falling back to defaults (with a log line,
// not an error) when the file does not exist.
func LoadConfigFile(path string) error {
	ConfigName = path
	return readConfig()
}

func readConfig() error {
	SetDefaultConfig()

	data, err := ioutil.ReadFile(ConfigName)
	if err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			logrus.Infof("did not find config file %v, continuing with defaults", ConfigName)
			return nil
		}
		return fmt.Errorf("failed to read config file (%v): %v", ConfigName, err)
	}

	if err := yaml.Unmarshal(data, &Config); err != nil {
		return fmt.Errorf("failed to unmarshal yaml from config file (%v): %v", ConfigName, err)
	}

	if err := assertConfigInvariants(); err != nil {
		return err
	}

	logrus.Infof("loaded config file %v", ConfigName)
	return nil
}
