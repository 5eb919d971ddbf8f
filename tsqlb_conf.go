package tsqlb

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

/*
Configuration of an `Env`. Zero fields are replaced with defaults, so a partial
YAML document is valid:

	cache_size: 4096
	tag_name: db
	log_level: debug
*/
type Conf struct {
	// Maximum number of cached clauses. Negative disables caching.
	CacheSize int `yaml:"cache_size"`

	// Struct tag consulted for column annotations.
	TagName string `yaml:"tag_name"`

	// Minimum level of the default logger: debug, info, warn or error. Ignored
	// when a logger is passed to `NewEnv`.
	LogLevel string `yaml:"log_level"`
}

// Returns the default configuration.
func DefaultConf() Conf {
	return Conf{CacheSize: DefaultCacheSize, TagName: TagNameDb, LogLevel: `info`}
}

func (self Conf) withDefaults() Conf {
	def := DefaultConf()
	if self.CacheSize == 0 {
		self.CacheSize = def.CacheSize
	}
	if self.TagName == `` {
		self.TagName = def.TagName
	}
	if self.LogLevel == `` {
		self.LogLevel = def.LogLevel
	}
	return self
}

// Parses the log level. Unknown levels are an error.
func (self Conf) Level() (slog.Level, error) {
	var out slog.Level
	err := out.UnmarshalText([]byte(strings.TrimSpace(self.LogLevel)))
	if err != nil {
		return out, ErrInvalidInput.while(`parsing log level`).because(err)
	}
	return out, nil
}

// Decodes YAML and applies defaults. Unknown keys are an error.
func ParseConf(src []byte) (Conf, error) {
	var out Conf
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	err := dec.Decode(&out)
	if err != nil && !errors.Is(err, io.EOF) {
		return Conf{}, ErrInvalidInput.while(`decoding config`).because(err)
	}

	out = out.withDefaults()
	_, err = out.Level()
	if err != nil {
		return Conf{}, err
	}
	return out, nil
}

// Reads and parses a YAML config file.
func LoadConf(path string) (Conf, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Conf{}, ErrInvalidInput.while(`reading config ` + path).because(err)
	}
	return ParseConf(src)
}

/*
Shared state for building statements: the clause cache, the entity resolver,
and the logger. Safe for concurrent use. Intended to be created once at startup
and shared, never reset. Tests may create isolated envs.
*/
type Env struct {
	Cache *Cache
	Meta  *Resolver
	Log   *slog.Logger
}

/*
Makes an env from the config. Nil logger means a text logger on stderr at the
configured level.
*/
func NewEnv(conf Conf, log *slog.Logger) *Env {
	conf = conf.withDefaults()

	if log == nil {
		level, err := conf.Level()
		if err != nil {
			level = slog.LevelInfo
		}
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	return &Env{
		Cache: NewCache(conf.CacheSize, log),
		Meta:  NewResolver(TagIntrospector{conf.TagName}),
		Log:   log,
	}
}

var defaultEnv = sync.OnceValue(func() *Env {
	return NewEnv(DefaultConf(), slog.Default())
})

/*
Returns the process-wide env used when a nil `*Env` is passed to any function
in this package. Created on first use with `DefaultConf()`.
*/
func Default() *Env { return defaultEnv() }

func (self *Env) orDefault() *Env {
	if self == nil {
		return Default()
	}
	return self
}

// Partially initialized envs fall back on the default env's parts, except for
// the cache: a nil cache is valid and means "no caching".
func (self *Env) meta() *Resolver {
	if self.Meta == nil {
		return Default().Meta
	}
	return self.Meta
}

func (self *Env) log() *slog.Logger {
	if self.Log == nil {
		return slog.Default()
	}
	return self.Log
}
