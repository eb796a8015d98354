// Package config loads the YAML configuration shared by the blog binaries.
package config

import (
	"net"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config.yml"

	ConnectionPooled     = "pooled"
	ConnectionPerRequest = "per_request"
)

type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		StaticDir       string        `yaml:"static_dir"`
		IndexFile       string        `yaml:"index_file"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Mongo struct {
		Host           string        `yaml:"host"`
		Port           string        `yaml:"port"`
		Username       string        `yaml:"username"`
		Password       string        `yaml:"password"`
		Database       string        `yaml:"database"`
		Uri            string        `yaml:"uri"`
		Collection     string        `yaml:"collection"`
		Connection     string        `yaml:"connection"`
		AtomicUpdates  bool          `yaml:"atomic_updates"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
	} `yaml:"mongo"`
	Redis struct {
		Host     string        `yaml:"host"`
		Port     string        `yaml:"port"`
		Username string        `yaml:"username"`
		Password string        `yaml:"password"`
		Database string        `yaml:"database"`
		Uri      string        `yaml:"uri"`
		Enabled  bool          `yaml:"enabled"`
		Queue    string        `yaml:"queue"`
		PopWait  time.Duration `yaml:"pop_wait"`

		PublishTimeout time.Duration `yaml:"publish_timeout"`
	} `yaml:"redis"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8000"
	cfg.Server.StaticDir = "build"
	cfg.Server.IndexFile = "index.html"
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Mongo.Host = "localhost"
	cfg.Mongo.Port = "27017"
	cfg.Mongo.Database = "my-blog"
	cfg.Mongo.Collection = "articles"
	cfg.Mongo.Connection = ConnectionPooled
	cfg.Mongo.AtomicUpdates = true
	cfg.Mongo.ConnectTimeout = 10 * time.Second

	cfg.Redis.Host = "localhost"
	cfg.Redis.Port = "6379"
	cfg.Redis.Queue = "queue:blog-view"
	cfg.Redis.PopWait = 5 * time.Second
	cfg.Redis.PublishTimeout = 500 * time.Millisecond

	cfg.Log.Level = "info"
	return cfg
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return nil, errors.Wrapf(err, "decode config %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "open config %s", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Mongo.Uri, "MONGO_URI")
	setFromEnv(&c.Mongo.Host, "MONGO_HOST")
	setFromEnv(&c.Mongo.Port, "MONGO_PORT")
	setFromEnv(&c.Redis.Uri, "REDIS_URI")
	setFromEnv(&c.Redis.Host, "REDIS_HOST")
	setFromEnv(&c.Redis.Port, "REDIS_PORT")
	setFromEnv(&c.Log.Level, "LOG_LEVEL")

	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	switch c.Mongo.Connection {
	case ConnectionPooled, ConnectionPerRequest:
	default:
		return errors.Errorf("mongo.connection must be %q or %q, got %q",
			ConnectionPooled, ConnectionPerRequest, c.Mongo.Connection)
	}
	if c.Mongo.Database == "" {
		return errors.New("mongo.database is required")
	}
	if c.Mongo.Collection == "" {
		return errors.New("mongo.collection is required")
	}
	return nil
}

// MongoURI is mongo.uri, or one built from host, port and credentials.
func (c *Config) MongoURI() string {
	if c.Mongo.Uri != "" {
		return c.Mongo.Uri
	}
	u := url.URL{
		Scheme: "mongodb",
		User:   userinfo(c.Mongo.Username, c.Mongo.Password),
		Host:   net.JoinHostPort(c.Mongo.Host, c.Mongo.Port),
	}
	return u.String()
}

// RedisURI is redis.uri, or one built from host, port, credentials and database.
func (c *Config) RedisURI() string {
	if c.Redis.Uri != "" {
		return c.Redis.Uri
	}
	db := c.Redis.Database
	if db == "" {
		db = "0"
	}
	u := url.URL{
		Scheme: "redis",
		User:   userinfo(c.Redis.Username, c.Redis.Password),
		Host:   net.JoinHostPort(c.Redis.Host, c.Redis.Port),
		Path:   "/" + db,
	}
	return u.String()
}

// userinfo escapes the credentials; nil leaves them out of the URI.
func userinfo(username, password string) *url.Userinfo {
	switch {
	case password != "":
		return url.UserPassword(username, password)
	case username != "":
		return url.User(username)
	}
	return nil
}
