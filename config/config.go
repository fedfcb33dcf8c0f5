/*
Copyright 2024 Dealseal Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT           = "5002"
	DEFAULT_SWEEP_INTERVAL = "1h"

	// DefaultAutoResolvePeriodDays is the waiting period before a pending
	// deal is force-confirmed.
	DefaultAutoResolvePeriodDays = 7
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"DEALSEAL_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"DEALSEAL_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"DEALSEAL_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"DEALSEAL_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"DEALSEAL_REDIS_DNS"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

// SupportConfig points at the external support-desk service that dispute
// tickets are opened against.
type SupportConfig struct {
	TicketUrl string `json:"ticket_url" envconfig:"DEALSEAL_SUPPORT_TICKET_URL"`
	Timeout   int    `json:"timeout"`
	Headers   struct {
		Authorization string `json:"Authorization"`
	} `json:"headers"`
}

// DealConfig carries the confirmation engine settings.
type DealConfig struct {
	AutoResolvePeriodDays int    `json:"auto_resolve_period_days" envconfig:"DEALSEAL_DEAL_AUTO_RESOLVE_PERIOD_DAYS"`
	SweepInterval         string `json:"sweep_interval" envconfig:"DEALSEAL_DEAL_SWEEP_INTERVAL"`
	SweepBatchSize        int    `json:"sweep_batch_size" envconfig:"DEALSEAL_DEAL_SWEEP_BATCH_SIZE"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"DEALSEAL_QUEUE_WEBHOOK"`
	MonitoringPort string `json:"monitoring_port" envconfig:"DEALSEAL_QUEUE_MONITORING_PORT"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"DEALSEAL_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Notification Notification     `json:"notification"`
	Support      SupportConfig    `json:"support"`
	Deal         DealConfig       `json:"deal"`
	Queue        QueueConfig      `json:"queue"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("dealseal", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called dealseal.json with your config ❌")
	}
	return c, nil
}

// SweepIntervalDuration parses the sweep interval, falling back to the
// default when the configured value does not parse.
func (cnf *Configuration) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(cnf.Deal.SweepInterval)
	if err != nil || d <= 0 {
		fallback, _ := time.ParseDuration(DEFAULT_SWEEP_INTERVAL)
		return fallback
	}
	return d
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Dealseal Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Deal.AutoResolvePeriodDays <= 0 {
		cnf.Deal.AutoResolvePeriodDays = DefaultAutoResolvePeriodDays
	}

	if cnf.Deal.SweepInterval == "" {
		cnf.Deal.SweepInterval = DEFAULT_SWEEP_INTERVAL
	}
	if _, err := time.ParseDuration(cnf.Deal.SweepInterval); err != nil {
		log.Printf("Warning: invalid sweep interval %q. Using default: %s", cnf.Deal.SweepInterval, DEFAULT_SWEEP_INTERVAL)
		cnf.Deal.SweepInterval = DEFAULT_SWEEP_INTERVAL
	}

	if cnf.Deal.SweepBatchSize <= 0 {
		cnf.Deal.SweepBatchSize = 500
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5004"
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	_ = mockConfig.validateAndAddDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
