package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/silinternational/analytics-admin/alert"
)

const (
	DefaultConfigFile     = "./config.json"
	DefaultVerbosity      = 5
	DefaultMaxConcurrency = 8
	DefaultDateFormat     = "02012006" // DDMMYYYY
)

type AppConfig struct {
	Runtime    RuntimeConfig
	Google     json.RawMessage // decoded by the google package (key file path or inline key)
	Alert      alert.Config
	Analytics  AnalyticsConfig
	TagManager TagManagerConfig
	Jobs       []Job
}

func NewAppConfig() AppConfig {
	return AppConfig{
		Runtime: RuntimeConfig{
			Verbosity:      DefaultVerbosity,
			MaxConcurrency: DefaultMaxConcurrency,
		},
	}
}

// LoadConfig looks for a config file if one is provided. Otherwise, it looks for
// a config file based on the CONFIG_PATH env var.  If that is not set, it gets
// the default config file ("./config.json").
func LoadConfig(configFile string) ([]byte, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_PATH")
		if configFile == "" {
			configFile = DefaultConfigFile
		}
	}

	log.Printf("Using config file: %s\n", configFile)

	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		log.Printf("unable to read application config file %s, error: %s\n", configFile, err.Error())
		return nil, err
	}
	return data, err
}

// ReadConfig parses raw json config data into an AppConfig struct
func ReadConfig(data []byte) (AppConfig, error) {
	config := NewAppConfig()
	err := json.Unmarshal(data, &config)
	if err != nil {
		log.Printf("unable to unmarshal application configuration file data, error: %s\n", err.Error())
		return config, err
	}

	if len(config.Google) == 0 {
		return config, errors.New("configuration appears to be missing a Google credential configuration")
	}

	if len(config.Jobs) == 0 {
		return config, errors.New("configuration appears to be missing a Jobs list")
	}

	for _, job := range config.Jobs {
		switch job.Type {
		case JobTypeAddUsers, JobTypeDeleteUsers, JobTypeCreateTags, JobTypeDeleteTags, JobTypeListEntities:
		default:
			return config, fmt.Errorf("unrecognized job type %q in job %q", job.Type, job.Name)
		}
	}

	if config.Runtime.MaxConcurrency <= 0 {
		config.Runtime.MaxConcurrency = DefaultMaxConcurrency
	}
	if config.TagManager.DateFormat == "" {
		config.TagManager.DateFormat = DefaultDateFormat
	}

	log.Printf("Configuration loaded. %v jobs found:\n", len(config.Jobs))

	for i, job := range config.Jobs {
		log.Printf("  %v) %s (%s)\n", i+1, job.Name, job.Type)
	}

	return config, nil
}

func (a *AppConfig) MaxJobNameLength() int {
	maxLength := 0
	for _, job := range a.Jobs {
		if maxLength < len(job.Name) {
			maxLength = len(job.Name)
		}
	}
	return maxLength
}
